// Package worker runs the background email delivery loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkforge/backend/pkg/mailer"
	"github.com/linkforge/backend/pkg/queue"
)

// EmailProcessor processes outbound email jobs: verification, invitation
// and password reset mail.
type EmailProcessor struct {
	mailer *mailer.Mailer
	queue  *queue.Queue
	logger *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(m *mailer.Mailer, q *queue.Queue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{mailer: m, queue: q, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	subject, text := compose(job.Type, payload)
	if subject == "" {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err := p.mailer.Send(ctx, payload.Recipient, subject, text, ""); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

func compose(jobType queue.JobType, payload queue.EmailPayload) (subject, text string) {
	switch jobType {
	case queue.JobTypeVerifyEmail:
		return "Verify your email address",
			"Welcome! Confirm your email address by opening this link:\n\n" + payload.Link
	case queue.JobTypeInviteEmail:
		return "You've been invited to an organization",
			"You have been invited to join an organization. Accept the invitation here:\n\n" + payload.Link
	case queue.JobTypeResetPassword:
		return "Reset your password",
			"A password reset was requested for your account. If this was you, open this link:\n\n" + payload.Link
	default:
		return "", ""
	}
}

// backoff waits one retry interval. It returns false when the context
// was cancelled first, so shutdown never waits out the interval.
func backoff(ctx context.Context) bool {
	t := time.NewTimer(queue.RetryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
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

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("email worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			if !backoff(ctx) {
				p.logger.Info("email worker stopping")
				return
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			if !backoff(ctx) {
				p.logger.Info("email worker stopping")
				return
			}
			continue
		}
	}
}
