// Package app wires configuration into a ready-to-serve handler and owns
// the shutdown order of the background parts.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-callback-links/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-callback-links/pkg/adapters/notifier"
	"github.com/wadjakorntonsri/go-callback-links/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-callback-links/pkg/config"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/dispatch"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/services"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/token"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

type App struct {
	handler   http.Handler
	store     ports.VisitStore
	scheduler *dispatch.Scheduler
	janitor   *services.Janitor
	log       zerolog.Logger
}

// Option customises construction, mostly for tests.
type Option func(*options)

type options struct {
	codecOpts []token.Option
	store     ports.VisitStore
	notifier  ports.Notifier
}

func WithTokenOptions(opts ...token.Option) Option {
	return func(o *options) { o.codecOpts = append(o.codecOpts, opts...) }
}

// WithVisitStore bypasses the backend named in the config.
func WithVisitStore(s ports.VisitStore) Option {
	return func(o *options) { o.store = s }
}

func WithNotifier(n ports.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	codec, err := token.NewCodec([]byte(cfg.TokenSecret), cfg.TokenAlgorithm, o.codecOpts...)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = repository.NewVisitStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dedup store: %w", err)
		}
	}

	n := o.notifier
	if n == nil {
		n = notifier.NewWebhookNotifier(notifier.Options{
			Timeout:    cfg.CallbackTimeout,
			HTTPClient: notifier.OAuthClient(context.Background(), cfg.CallbackOAuth),
		})
	}

	a := &App{
		store:     store,
		scheduler: dispatch.NewScheduler(n, log),
		log:       log,
	}

	if purger, ok := store.(ports.VisitPurger); ok && cfg.PurgeSchedule != "" {
		a.janitor, err = services.NewJanitor(purger, cfg.PurgeSchedule, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.janitor.Start()
	}

	svc := services.NewLinkService(codec, store, a.scheduler, log)
	a.handler = handler.NewRouter(cfg, svc, log)

	log.Info().
		Str("dedup_backend", cfg.DedupBackend).
		Str("algorithm", cfg.TokenAlgorithm).
		Dur("retention", cfg.DedupRetention).
		Bool("callback_oauth", cfg.CallbackOAuth.Enabled()).
		Msg("app initialised")
	return a, nil
}

func (a *App) Handler() http.Handler { return a.handler }

// Scheduler exposes the dispatcher, e.g. to inspect pending jobs.
func (a *App) Scheduler() *dispatch.Scheduler { return a.scheduler }

// Shutdown drains the scheduler, stops the janitor and closes the store.
// The HTTP server must already be stopped so no new jobs arrive.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.scheduler.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if a.janitor != nil {
		if err := a.janitor.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("janitor: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dedup store: %w", err))
	}
	return errors.Join(errs...)
}
