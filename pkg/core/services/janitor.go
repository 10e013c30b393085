package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-callback-links/pkg/metrics"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

// Janitor periodically removes expired dedup records from backends that
// have no native expiry.
type Janitor struct {
	purger ports.VisitPurger
	cron   *cron.Cron
	log    zerolog.Logger
}

// NewJanitor accepts standard cron specs and descriptors such as "@every 1h".
func NewJanitor(purger ports.VisitPurger, spec string, log zerolog.Logger) (*Janitor, error) {
	j := &Janitor{
		purger: purger,
		cron:   cron.New(),
		log:    log.With().Str("component", "janitor").Logger(),
	}
	if _, err := j.cron.AddFunc(spec, func() { _, _ = j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", spec, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	j.log.Info().Msg("janitor started")
}

// Stop prevents further runs and waits for a running purge or ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("purge expired visits failed")
		return 0, err
	}
	metrics.VisitsPurged.Add(float64(n))
	if n > 0 {
		j.log.Info().Int64("purged", n).Msg("expired visits purged")
	}
	return n, nil
}
