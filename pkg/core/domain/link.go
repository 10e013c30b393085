package domain

import "time"

const (
	MinDelaySeconds = 1
	MaxDelaySeconds = 3600

	// TokenLifetime is how long an issued link stays redeemable.
	TokenLifetime = 30 * 24 * time.Hour
)

// LinkRequest is the input for issuing a new deferred callback link
type LinkRequest struct {
	CallbackURL string `json:"callback_url" validate:"required,http_url"`
	Seconds     int    `json:"seconds" validate:"min=1,max=3600"`
	RedirectURL string `json:"redirect_url" validate:"required,http_url"`
	State       string `json:"state" validate:"required"`
}

// LinkToken is the decoded content of a verified link token.
// It only exists between Issue and Verify; the encoded string is the state.
type LinkToken struct {
	CallbackURL string        `json:"callback_url"`
	RedirectURL string        `json:"redirect_url"`
	Delay       time.Duration `json:"delay"`
	IssuedAt    time.Time     `json:"issued_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// ValidDelay reports whether seconds is inside the accepted delay window.
func ValidDelay(seconds int) bool {
	return seconds >= MinDelaySeconds && seconds <= MaxDelaySeconds
}
