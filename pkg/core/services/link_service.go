package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-callback-links/pkg/metrics"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

type LinkService struct {
	codec     ports.TokenCodec
	visits    ports.VisitStore
	scheduler ports.Scheduler
	log       zerolog.Logger
}

func NewLinkService(codec ports.TokenCodec, visits ports.VisitStore, scheduler ports.Scheduler, log zerolog.Logger) *LinkService {
	return &LinkService{
		codec:     codec,
		visits:    visits,
		scheduler: scheduler,
		log:       log.With().Str("component", "links").Logger(),
	}
}

// CreateLink issues a token and returns <baseURL>/redirect/<token>?state=<state>.
func (s *LinkService) CreateLink(ctx context.Context, req domain.LinkRequest, baseURL string) (string, error) {
	tok, err := s.codec.Issue(req.CallbackURL, req.RedirectURL, req.Seconds)
	if err != nil {
		return "", err
	}
	metrics.LinksCreated.Inc()

	q := url.Values{}
	q.Set("state", req.State)
	return strings.TrimSuffix(baseURL, "/") + "/redirect/" + tok + "?" + q.Encode(), nil
}

// Redeem verifies the token and returns the redirect destination. The first
// visit of a state for (origin, destination) schedules the callback.
// Dedup backend failures are returned, never skipped.
func (s *LinkService) Redeem(ctx context.Context, token, state string, hasState bool, origin string) (string, error) {
	if !hasState {
		metrics.Redemptions.WithLabelValues("missing_state").Inc()
		return "", domain.ErrMissingState
	}

	link, err := s.codec.Verify(token)
	if err != nil {
		metrics.Redemptions.WithLabelValues("invalid").Inc()
		return "", err
	}

	first, err := s.visits.TryRecordFirstVisit(ctx, link.RedirectURL, origin, state)
	if err != nil {
		if errors.Is(err, domain.ErrBackendUnavailable) {
			metrics.Redemptions.WithLabelValues("backend_unavailable").Inc()
		}
		return "", err
	}

	if !first {
		metrics.Redemptions.WithLabelValues("repeat_visit").Inc()
		s.log.Info().Str("state", state).Str("destination", link.RedirectURL).Msg("already visited, no callback scheduled")
		return link.RedirectURL, nil
	}

	metrics.Redemptions.WithLabelValues("first_visit").Inc()
	s.scheduler.Schedule(domain.DispatchJob{
		ID:      uuid.NewString(),
		Target:  link.CallbackURL,
		Payload: domain.Notification{State: state},
		Delay:   link.Delay,
	})
	return link.RedirectURL, nil
}
