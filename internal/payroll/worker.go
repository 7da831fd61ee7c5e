package payroll

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hrledger/internal/logging"
	"hrledger/internal/queue"
)

// Consumer is the receiving side of the job queue.
type Consumer interface {
	Consume(ctx context.Context) (<-chan queue.Message, error)
}

// Run processes queued jobs with at most concurrency in flight until ctx is done.
// A failed job is logged and dropped; it never stops the loop.
func (s *Service) Run(ctx context.Context, c Consumer, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	messages, err := c.Consume(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for msg := range messages {
		msg := msg
		g.Go(func() error {
			log := logging.FromContext(ctx, s.logger).With(zap.String("message_id", msg.ID), zap.String("type", msg.Type))
			if err := s.HandleMessage(ctx, msg); err != nil {
				log.Error("payroll job failed", zap.Error(err))
				return nil
			}
			log.Debug("payroll job done")
			return nil
		})
	}
	return g.Wait()
}
