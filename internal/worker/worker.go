package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventforms/backend/internal/models"
	"github.com/eventforms/backend/internal/notify"
	"github.com/eventforms/backend/internal/store"
	"github.com/eventforms/backend/pkg/queue"
)

// Source is the part of queue.Queue the processor consumes.
type Source interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Loader reads the records a confirmation is composed from.
type Loader interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	GetResponse(ctx context.Context, eventID, responseID int64) (*models.ResponseDetail, error)
}

// EmailProcessor delivers queued confirmation emails.
type EmailProcessor struct {
	source  Source
	loader  Loader
	sender  notify.Sender
	appURL  string
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor. appURL is the web client base used
// in edit links.
func NewEmailProcessor(source Source, loader Loader, sender notify.Sender, appURL string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{source: source, loader: loader, sender: sender, appURL: appURL, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeConfirmationEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	ev, err := p.loader.GetEvent(ctx, payload.EventID)
	if err != nil {
		return p.loadFailed(job, payload, err)
	}
	detail, err := p.loader.GetResponse(ctx, payload.EventID, payload.ResponseID)
	if err != nil {
		return p.loadFailed(job, payload, err)
	}
	return p.send(ctx, notify.Confirmation{
		Event:       *ev,
		ResponseID:  detail.ID,
		Participant: detail.Participant,
		EditToken:   detail.EditToken,
	})
}

// loadFailed drops jobs whose response was deleted in the meantime; other errors retry.
func (p *EmailProcessor) loadFailed(job *queue.Job, payload queue.EmailPayload, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		p.logger.Info("confirmation dropped, response no longer exists",
			zap.String("job_id", job.ID), zap.Int64("event_id", payload.EventID), zap.Int64("response_id", payload.ResponseID))
		return nil
	}
	return fmt.Errorf("load response: %w", err)
}

func (p *EmailProcessor) send(ctx context.Context, c notify.Confirmation) error {
	if c.Participant.Email == "" {
		return nil
	}
	if err := p.sender.Send(ctx, notify.Compose(c, p.appURL)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	p.logger.Info("confirmation email delivered",
		zap.Int64("event_id", c.Event.ID), zap.Int64("response_id", c.ResponseID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.source.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
