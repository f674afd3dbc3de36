package models

import (
	"fmt"
	"strings"
	"time"
)

// QuestionType is the input type of a registration question.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionTextarea       QuestionType = "textarea"
	QuestionEmail          QuestionType = "email"
	QuestionNumber         QuestionType = "number"
	QuestionPhone          QuestionType = "phone"
	QuestionDate           QuestionType = "date"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionDropdown       QuestionType = "dropdown"
	QuestionCheckbox       QuestionType = "checkbox"
)

// ParseQuestionType validates s against the known question types.
func ParseQuestionType(s string) (QuestionType, error) {
	switch qt := QuestionType(strings.ToLower(strings.TrimSpace(s))); qt {
	case QuestionText, QuestionTextarea, QuestionEmail, QuestionNumber, QuestionPhone, QuestionDate,
		QuestionMultipleChoice, QuestionDropdown, QuestionCheckbox:
		return qt, nil
	}
	return "", fmt.Errorf("invalid questionType %q", s)
}

// SupportsOptions reports whether the type takes enumerated options.
func (t QuestionType) SupportsOptions() bool {
	switch t {
	case QuestionMultipleChoice, QuestionDropdown, QuestionCheckbox:
		return true
	}
	return false
}

// Question is a custom registration question attached to an event.
type Question struct {
	ID           int64        `json:"questionId"`
	EventID      int64        `json:"eventId"`
	QuestionText string       `json:"questionText"`
	QuestionType QuestionType `json:"questionType"`
	IsRequired   bool         `json:"isRequired"`
	SortOrder    int          `json:"sortOrder"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// QuestionPatch is a partial question update.
type QuestionPatch struct {
	QuestionText Optional[string]
	QuestionType Optional[QuestionType]
	IsRequired   Optional[bool]
	SortOrder    Optional[int]
}

// Empty reports whether the patch changes nothing.
func (p QuestionPatch) Empty() bool {
	return !(p.QuestionText.Set || p.QuestionType.Set || p.IsRequired.Set || p.SortOrder.Set)
}

// Apply writes the set fields of p onto q.
func (p QuestionPatch) Apply(q *Question) {
	if p.QuestionText.Set {
		q.QuestionText = p.QuestionText.Value
	}
	if p.QuestionType.Set && !p.QuestionType.Null {
		q.QuestionType = p.QuestionType.Value
	}
	if p.IsRequired.Set {
		q.IsRequired = p.IsRequired.Value
	}
	if p.SortOrder.Set {
		q.SortOrder = p.SortOrder.Value
	}
}

// Option is one enumerated choice of a choice-type question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Label      string `json:"label"`
	SortOrder  int    `json:"sortOrder"`
}
