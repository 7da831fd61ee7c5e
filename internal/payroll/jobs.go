package payroll

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/queue"
)

// HandleMessage runs one queued job on behalf of the company that enqueued it.
func (s *Service) HandleMessage(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypePayrollProcess {
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
	var job queue.PayrollProcess
	if err := msg.Decode(&job); err != nil {
		return fmt.Errorf("decode %s: %w", msg.ID, err)
	}

	scope := ledger.Scope{UserID: job.RequestedBy, Role: ledger.RoleAdmin, CompanyID: job.CompanyID}
	ctx = logging.WithContext(ctx, logging.FromContext(ctx, s.logger).With(
		zap.String("message_id", msg.ID),
		zap.Int64("company_id", job.CompanyID),
	))
	_, err := s.Process(ctx, scope, job.PayrollID)
	return err
}
