package models

import (
	"strings"
	"time"
)

// Participant is the contact record attached to a submission.
type Participant struct {
	ID         int64  `json:"participantId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	HomeNumber string `json:"homeNumber"`
	Street     string `json:"street"`
	Apartment  string `json:"apartment"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zipcode    string `json:"zipcode"`
}

// Normalize trims every contact field.
func (p *Participant) Normalize() {
	for _, f := range []*string{&p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.HomeNumber,
		&p.Street, &p.Apartment, &p.City, &p.State, &p.Zipcode} {
		*f = strings.TrimSpace(*f)
	}
}

// Response is one submission of an event's registration form.
type Response struct {
	ID            int64     `json:"submissionId"`
	EventID       int64     `json:"eventId"`
	ParticipantID int64     `json:"participantId"`
	EditToken     string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Answer is the text answer to one question within a response.
type Answer struct {
	ResponseID   int64  `json:"submissionId"`
	QuestionID   int64  `json:"questionId"`
	QuestionText string `json:"questionText,omitempty"`
	AnswerText   string `json:"answerText"`
}

// ResponseDetail is the read model of a response with its participant and answers.
type ResponseDetail struct {
	Response
	Participant Participant `json:"participant"`
	Answers     []Answer    `json:"answers"`
}
