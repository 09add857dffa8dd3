package order

import (
	"context"
	"time"

	"go-mpesa/payment/db"

	"go.uber.org/zap"
)

const sweepBatch = 50

// Monitor finalizes payments whose callback never arrived by asking the
// gateway for their result.
type Monitor struct {
	svc      *Service
	interval time.Duration
	age      time.Duration
}

func (s *Service) NewMonitor(interval, age time.Duration) *Monitor {
	return &Monitor{svc: s, interval: interval, age: age}
}

func (m *Monitor) Run(ctx context.Context) {
	m.svc.log.Info("starting pending payment monitor",
		zap.Duration("interval", m.interval), zap.Duration("age", m.age))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks one batch of stale Pending records and returns how many it
// moved to a terminal status.
func (m *Monitor) Sweep(ctx context.Context) int {
	s := m.svc
	stale, err := s.store.PendingBefore(ctx, s.now().Add(-m.age), sweepBatch)
	if err != nil {
		s.log.Warn("pending sweep: listing failed", zap.Error(err))
		return 0
	}

	finalized := 0
	for _, rec := range stale {
		if ctx.Err() != nil {
			break
		}

		q, err := s.gateway.QuerySTK(ctx, rec.CheckoutRequestID)
		if err != nil {
			s.log.Debug("pending sweep: query not conclusive",
				zap.String("checkoutRequestId", rec.CheckoutRequestID), zap.Error(err))
			continue
		}
		if !q.Final() {
			continue
		}

		// A query answer has no receipt; Reconcile fills it in when the
		// callback turns up.
		u := db.StatusUpdate{Status: db.StatusFailed, ResultDesc: q.ResultDesc}
		if q.Succeeded() {
			u.Status = db.StatusCompleted
		}

		outcome, err := s.finalize(ctx, rec.CheckoutRequestID, u)
		if err != nil {
			s.log.Warn("pending sweep: update failed",
				zap.String("checkoutRequestId", rec.CheckoutRequestID), zap.Error(err))
			continue
		}
		if outcome == OutcomeCompleted || outcome == OutcomeFailed {
			finalized++
			s.log.Info("pending sweep: payment finalized",
				zap.String("checkoutRequestId", rec.CheckoutRequestID),
				zap.String("outcome", string(outcome)))
		}
	}
	return finalized
}
