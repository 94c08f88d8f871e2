// Package notify delivers assignment lifecycle notifications over the chat
// transport. Delivery runs on a background queue after the triggering write
// has committed, so a slow or failing chat API never rolls back state.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/schoolbot/internal/chat"
	"github.com/noah-isme/schoolbot/internal/models"
	"github.com/noah-isme/schoolbot/pkg/config"
	"github.com/noah-isme/schoolbot/pkg/jobs"
)

// Delivery outcomes, recorded per notification.
const (
	OutcomeSent     = "sent"
	OutcomeFallback = "fallback"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Notification is one message owed to one recipient.
type Notification struct {
	Recipient    string
	ChatID       *int64
	Text         string
	Attachment   *models.Attachment
	AssignmentID int64
}

// MessageRecorder stores the chat message id produced by a delivery.
type MessageRecorder interface {
	SetMessageID(ctx context.Context, assignmentID int64, messageID int64) error
}

// OutcomeRecorder counts delivery outcomes.
type OutcomeRecorder interface {
	NotificationOutcome(outcome string)
}

// Dispatcher queues notifications and delivers them attachment-first with a
// plain text fallback. It never surfaces delivery errors to its callers.
type Dispatcher struct {
	transport chat.Transport
	queue     *jobs.Queue
	messages  MessageRecorder
	outcomes  OutcomeRecorder
	logger    *zap.Logger
}

// NewDispatcher builds a Dispatcher with its own delivery queue. Call Start
// before enqueueing and Stop on shutdown.
func NewDispatcher(transport chat.Transport, messages MessageRecorder, outcomes OutcomeRecorder, cfg config.NotificationConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		transport: transport,
		messages:  messages,
		outcomes:  outcomes,
		logger:    logger,
	}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Notify enqueues a notification. Failures are logged, never returned: the
// triggering operation already committed and must not appear to fail.
func (d *Dispatcher) Notify(n Notification) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "notification",
		Payload: n,
	})
	if err != nil {
		d.record(OutcomeFailed)
		d.logger.Sugar().Errorw("notification dropped", "recipient", n.Recipient, "error", err)
	}
}

// NotifyAll enqueues one notification per recipient.
func (d *Dispatcher) NotifyAll(batch []Notification) {
	for _, n := range batch {
		d.Notify(n)
	}
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(Notification)
	if !ok {
		d.logger.Sugar().Errorw("unexpected notification payload", "job_id", job.ID)
		return nil
	}
	return d.deliver(ctx, n)
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	if n.ChatID == nil {
		d.record(OutcomeSkipped)
		d.logger.Sugar().Infow("notification skipped, recipient not registered", "recipient", n.Recipient)
		return nil
	}

	outcome := OutcomeSent
	messageID, err := d.sendAttachment(ctx, *n.ChatID, n)
	if err != nil {
		// Attachment delivery can fail on stale file ids; the text still
		// carries the essential information.
		d.logger.Sugar().Warnw("attachment delivery failed, falling back to text",
			"recipient", n.Recipient, "error", err)
		outcome = OutcomeFallback
		messageID, err = d.transport.SendMessage(ctx, *n.ChatID, n.Text)
	}
	if err != nil {
		d.record(OutcomeFailed)
		return fmt.Errorf("deliver to %s: %w", n.Recipient, err)
	}

	d.record(outcome)
	if n.AssignmentID != 0 && d.messages != nil {
		if err := d.messages.SetMessageID(ctx, n.AssignmentID, messageID); err != nil {
			d.logger.Sugar().Warnw("failed to record message id",
				"assignment_id", n.AssignmentID, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) sendAttachment(ctx context.Context, chatID int64, n Notification) (int64, error) {
	if n.Attachment == nil {
		return d.transport.SendMessage(ctx, chatID, n.Text)
	}
	switch n.Attachment.Type {
	case models.FileTypePhoto:
		return d.transport.SendPhoto(ctx, chatID, n.Attachment.FileID, n.Text)
	default:
		return d.transport.SendDocument(ctx, chatID, n.Attachment.FileID, n.Text)
	}
}

func (d *Dispatcher) record(outcome string) {
	if d.outcomes != nil {
		d.outcomes.NotificationOutcome(outcome)
	}
}
