package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NewScheduler registers the periodic price refresh and the reconcile pass.
// The caller starts and stops the returned cron.
func NewScheduler(ctx context.Context, prices Price, refresh time.Duration, reconciler *Reconciler, schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if _, err := c.AddFunc("@every "+refresh.String(), func() {
		quote := prices.Refresh(ctx)
		logrus.WithFields(logrus.Fields{
			"usd":      quote.USD.String(),
			"fallback": quote.Fallback,
		}).Debug("price refreshed")
	}); err != nil {
		return nil, errors.Wrap(err, "schedule price refresh")
	}

	if _, err := c.AddFunc(schedule, func() {
		if _, err := reconciler.Run(ctx); err != nil {
			logrus.Errorf("reconcile pass: %s", err)
		}
	}); err != nil {
		return nil, errors.Wrapf(err, "schedule reconcile %q", schedule)
	}
	return c, nil
}
