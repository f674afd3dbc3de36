// Package notify sends submission confirmation emails. Delivery is best effort:
// callers log failures and never fail a submission because of them.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/pkg/queue"
)

// Confirmation describes a recorded submission to acknowledge.
type Confirmation struct {
	Event       models.Event
	ResponseID  int64
	Participant models.Participant
	EditToken   string
}

// Notifier delivers confirmations.
type Notifier interface {
	NotifyConfirmation(ctx context.Context, c Confirmation) error
}

// Message is a composed plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Compose renders the confirmation email. The edit link is only included when the
// event allows response edits.
func Compose(c Confirmation, appURL string) Message {
	var b strings.Builder
	name := strings.TrimSpace(c.Participant.FirstName + " " + c.Participant.LastName)
	if name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
	}
	fmt.Fprintf(&b, "Your response to %q was recorded.\n\n", c.Event.Name)
	fmt.Fprintf(&b, "Submission ID: %d\n", c.ResponseID)
	if !c.Event.Date.IsZero() {
		when := c.Event.Date.String()
		if c.Event.Time != nil {
			when += " " + c.Event.Time.String()
		}
		fmt.Fprintf(&b, "When: %s\n", when)
	}
	if c.Event.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", c.Event.Location)
	}
	if c.Event.AllowResponseEdit && appURL != "" {
		fmt.Fprintf(&b, "\nView or edit your submission:\n%s\n", EditLink(appURL, c.Event.ID, c.ResponseID, c.EditToken))
	}
	return Message{
		To:      c.Participant.Email,
		ToName:  name,
		Subject: fmt.Sprintf("Thanks for your response! (#%d)", c.ResponseID),
		Body:    b.String(),
	}
}

// EditLink builds the self-service link for a response.
func EditLink(appURL string, eventID, responseID int64, token string) string {
	link := fmt.Sprintf("%s/events/%d/responses/%d", strings.TrimRight(appURL, "/"), eventID, responseID)
	if token != "" {
		link += "?editToken=" + url.QueryEscape(token)
	}
	return link
}

// Nop discards confirmations.
type Nop struct {
	Logger *zap.Logger
}

// NotifyConfirmation logs and returns nil.
func (n Nop) NotifyConfirmation(_ context.Context, c Confirmation) error {
	if n.Logger != nil {
		n.Logger.Debug("email disabled, confirmation skipped",
			zap.Int64("event_id", c.Event.ID), zap.Int64("response_id", c.ResponseID))
	}
	return nil
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Direct composes and sends synchronously.
type Direct struct {
	sender Sender
	appURL string
}

// NewDirect creates a notifier that sends through sender.
func NewDirect(sender Sender, appURL string) *Direct {
	return &Direct{sender: sender, appURL: appURL}
}

// NotifyConfirmation composes and sends the email.
func (d *Direct) NotifyConfirmation(ctx context.Context, c Confirmation) error {
	if c.Participant.Email == "" {
		return nil
	}
	return d.sender.Send(ctx, Compose(c, d.appURL))
}

// Enqueuer is the part of queue.Queue used by Queued.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Queued hands the confirmation to the worker queue by id. The worker composes the
// email from the stored response.
type Queued struct {
	queue Enqueuer
}

// NewQueued creates a notifier that enqueues email jobs.
func NewQueued(q Enqueuer) *Queued {
	return &Queued{queue: q}
}

// NotifyConfirmation enqueues an email job for the response.
func (q *Queued) NotifyConfirmation(ctx context.Context, c Confirmation) error {
	if c.Participant.Email == "" {
		return nil
	}
	return q.queue.EnqueueEmail(ctx, queue.EmailPayload{EventID: c.Event.ID, ResponseID: c.ResponseID})
}
