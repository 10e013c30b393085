package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

// TokenCodec issues and verifies signed link tokens
type TokenCodec interface {
	Issue(callbackURL, redirectURL string, seconds int) (string, error)
	Verify(token string) (domain.LinkToken, error)
}

// VisitStore remembers which visitor states already triggered a callback
// for a destination. TryRecordFirstVisit is one atomic check-and-set: of
// several concurrent calls with the same arguments exactly one returns true.
// Backend failures are reported as domain.ErrBackendUnavailable.
type VisitStore interface {
	TryRecordFirstVisit(ctx context.Context, destination, origin, state string) (bool, error)
	Close() error
}

// VisitPurger is implemented by stores without native key expiry.
type VisitPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler fires a job after its delay without blocking the caller
type Scheduler interface {
	Schedule(job domain.DispatchJob)
}

// Notifier performs a single best-effort delivery
type Notifier interface {
	Deliver(ctx context.Context, target string, payload domain.Notification) domain.DeliveryOutcome
}

// LinkService defines the business logic operations
type LinkService interface {
	CreateLink(ctx context.Context, req domain.LinkRequest, baseURL string) (string, error)
	Redeem(ctx context.Context, token, state string, hasState bool, origin string) (string, error)
}
