package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper force expires rooms whose join lapsed while connections are live
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// WorkerService runs the scheduled expiry sweep. Sessions already re-check
// expiry every poll tick; the sweep covers rooms whose sessions are blocked
// on a slow peer.
type WorkerService struct {
	sweeper  Sweeper
	interval time.Duration
}

func NewWorkerService(sweeper Sweeper, interval time.Duration) *WorkerService {
	return &WorkerService{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start blocks running the sweep every interval until ctx is cancelled
func (w *WorkerService) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval).Info("Expiry worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			if expired := w.sweeper.Sweep(ctx); expired > 0 {
				logrus.WithField("rooms", expired).Info("Expiry sweep rotated rooms")
			}
		}
	}
}
