// Package export renders events and responses as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/eventforms/backend/internal/models"
)

// EventHeader is the column list of the events export.
var EventHeader = []string{"eventId", "name", "date", "time", "endTime", "location", "description", "status", "createdAt"}

// ResponseHeader is the fixed column prefix of the responses export; one column per
// question follows.
var ResponseHeader = []string{"submissionId", "firstName", "lastName", "email", "phone", "homeNumber",
	"street", "apartment", "city", "state", "zipcode", "createdAt", "updatedAt"}

// AnswerSeparator joins multiple answers to the same question.
const AnswerSeparator = "; "

// Events writes one row per event.
func Events(w io.Writer, events []models.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EventHeader); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			strconv.FormatInt(ev.ID, 10),
			ev.Name,
			ev.Date.String(),
			clock(ev.Time),
			clock(ev.EndTime),
			ev.Location,
			ev.Description,
			string(ev.Status),
			ev.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(sanitize(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Responses writes one row per response with a column per distinct question text.
// Columns follow the order of questions; texts that only occur in answers (renamed or
// duplicate questions) are appended in first-seen order.
func Responses(w io.Writer, questions []models.Question, responses []models.ResponseDetail) error {
	var columns []string
	index := map[string]int{}
	addColumn := func(text string) {
		if _, ok := index[text]; !ok {
			index[text] = len(columns)
			columns = append(columns, text)
		}
	}
	for _, q := range questions {
		addColumn(q.QuestionText)
	}
	for _, r := range responses {
		for _, a := range r.Answers {
			addColumn(a.QuestionText)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(sanitize(append(append([]string{}, ResponseHeader...), columns...))); err != nil {
		return err
	}
	for _, r := range responses {
		p := r.Participant
		row := []string{
			strconv.FormatInt(r.ID, 10),
			p.FirstName, p.LastName, p.Email, p.Phone, p.HomeNumber,
			p.Street, p.Apartment, p.City, p.State, p.Zipcode,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		}
		answers := make([][]string, len(columns))
		for _, a := range r.Answers {
			i := index[a.QuestionText]
			answers[i] = append(answers[i], a.AnswerText)
		}
		for _, list := range answers {
			row = append(row, strings.Join(list, AnswerSeparator))
		}
		if err := cw.Write(sanitize(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func clock(t *models.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// sanitize prefixes cells that spreadsheet applications would evaluate as formulas.
func sanitize(row []string) []string {
	for i, cell := range row {
		if cell != "" && strings.ContainsRune("=+-@", rune(cell[0])) {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				row[i] = "'" + cell
			}
		}
	}
	return row
}
