// Package worker runs periodic maintenance of the inspection lifecycle.
package worker

import (
	"context" // Cancellation
	"time"    // Ticker

	"github.com/sirupsen/logrus" // Structured logging
)

// InspectionSweeper is the subset of the inspection service the sweeper drives
type InspectionSweeper interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
	ArchiveSigned(ctx context.Context, olderThan time.Duration) (int, error)
}

// Options configures the sweeper; zero values fall back to defaults
type Options struct {
	Interval      time.Duration // Time between sweeps
	PaymentExpiry time.Duration // Unpaid inspections older than this expire
	ArchiveAfter  time.Duration // Signed inspections older than this are archived
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.PaymentExpiry <= 0 {
		o.PaymentExpiry = 48 * time.Hour
	}
	if o.ArchiveAfter <= 0 {
		o.ArchiveAfter = 90 * 24 * time.Hour
	}
}

// Sweeper expires unpaid inspections and archives old signed ones
type Sweeper struct {
	inspections InspectionSweeper
	opt         Options
}

// NewSweeper returns a sweeper with defaults applied
func NewSweeper(inspections InspectionSweeper, opt Options) *Sweeper {
	opt.applyDefaults()
	return &Sweeper{inspections: inspections, opt: opt}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	logrus.WithField("interval", s.opt.Interval.String()).Info("Starting inspection sweeper")
	ticker := time.NewTicker(s.opt.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			logrus.Info("Stopping inspection sweeper")
			return
		}
	}
}

// SweepOnce runs both passes; a failing pass is logged and the other still runs
func (s *Sweeper) SweepOnce(ctx context.Context) (expired, archived int) {
	var err error
	if expired, err = s.inspections.ExpireStale(ctx, s.opt.PaymentExpiry); err != nil {
		logrus.WithField("error", err.Error()).Error("Expiry sweep failed")
	}
	if archived, err = s.inspections.ArchiveSigned(ctx, s.opt.ArchiveAfter); err != nil {
		logrus.WithField("error", err.Error()).Error("Archive sweep failed")
	}
	if expired > 0 || archived > 0 {
		logrus.WithFields(logrus.Fields{"expired": expired, "archived": archived}).Info("Inspection sweep finished")
	}
	return expired, archived
}
