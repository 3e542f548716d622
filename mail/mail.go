// Package mail delivers drafted outreach emails. LogSender is the default
// delivery backend; it records each draft instead of handing it to an SMTP
// relay, which keeps dry runs safe.
package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/types"
)

// Sender delivers email drafts.
type Sender interface {
	Send(ctx context.Context, drafts []types.EmailDraft) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, drafts []types.EmailDraft) error

func (f SenderFunc) Send(ctx context.Context, drafts []types.EmailDraft) error {
	return f(ctx, drafts)
}

// LogSender logs each draft at info level.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, drafts []types.EmailDraft) error {
	for _, draft := range drafts {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Info("email ready",
			zap.String("lead", draft.LeadName),
			zap.String("to", draft.To),
			zap.Int("body_bytes", len(draft.Body)))
	}
	return nil
}
