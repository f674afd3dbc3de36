package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/pkg/queue"
)

type recordingSender struct{ sent []Message }

func (r *recordingSender) Send(_ context.Context, m Message) error {
	r.sent = append(r.sent, m)
	return nil
}

type recordingQueue struct{ jobs []queue.EmailPayload }

func (r *recordingQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	r.jobs = append(r.jobs, p)
	return nil
}

func confirmation(allowEdit bool) Confirmation {
	start := models.TimeOfDay(9 * 3600)
	return Confirmation{
		Event: models.Event{
			ID: 7, Name: "Open House", Date: models.Date{Year: 2026, Month: 11, Day: 2}, Time: &start,
			Location: "Main Hall", AllowResponseEdit: allowEdit,
		},
		ResponseID:  42,
		Participant: models.Participant{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"},
		EditToken:   "tok/en",
	}
}

func TestCompose(t *testing.T) {
	m := Compose(confirmation(true), "https://forms.example.com/")
	assert.Equal(t, "ann@example.com", m.To)
	assert.Equal(t, "Ann Lee", m.ToName)
	assert.Equal(t, "Thanks for your response! (#42)", m.Subject)
	assert.Contains(t, m.Body, `"Open House"`)
	assert.Contains(t, m.Body, "When: 2026-11-02 09:00:00")
	assert.Contains(t, m.Body, "https://forms.example.com/events/7/responses/42?editToken=tok%2Fen")

	locked := Compose(confirmation(false), "https://forms.example.com")
	assert.NotContains(t, locked.Body, "editToken")
}

func TestDirectSkipsMissingEmail(t *testing.T) {
	s := &recordingSender{}
	d := NewDirect(s, "")
	c := confirmation(true)
	c.Participant.Email = ""
	require.NoError(t, d.NotifyConfirmation(context.Background(), c))
	assert.Empty(t, s.sent)

	require.NoError(t, d.NotifyConfirmation(context.Background(), confirmation(true)))
	assert.Len(t, s.sent, 1)
}

func TestQueuedEnqueuesIDsOnly(t *testing.T) {
	q := &recordingQueue{}
	n := NewQueued(q)
	require.NoError(t, n.NotifyConfirmation(context.Background(), confirmation(true)))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, queue.EmailPayload{EventID: 7, ResponseID: 42}, q.jobs[0])

	raw, err := json.Marshal(q.jobs[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok")
	assert.NotContains(t, string(raw), "ann@example.com")

	c := confirmation(true)
	c.Participant.Email = ""
	require.NoError(t, n.NotifyConfirmation(context.Background(), c))
	assert.Len(t, q.jobs, 1)
}
