package domain

import "time"

// Notification is the JSON body posted to a link's callback URL.
type Notification struct {
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// DispatchJob is a pending callback. It lives in memory only and is handed
// to the notifier exactly once.
type DispatchJob struct {
	ID      string
	Target  string
	Payload Notification
	Delay   time.Duration
	FireAt  time.Time
}

// DeliveryOutcome reports what happened to a single delivery attempt.
// It is logged and counted, never retried.
type DeliveryOutcome struct {
	Delivered  bool          `json:"delivered"`
	StatusCode int           `json:"status_code,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func Delivered(statusCode int) DeliveryOutcome {
	return DeliveryOutcome{Delivered: true, StatusCode: statusCode}
}

func Failed(reason string) DeliveryOutcome {
	return DeliveryOutcome{Reason: reason}
}

// Result is a low-cardinality label for the outcome.
func (o DeliveryOutcome) Result() string {
	switch {
	case !o.Delivered:
		return "failed"
	case o.StatusCode >= 200 && o.StatusCode < 300:
		return "2xx"
	case o.StatusCode >= 400 && o.StatusCode < 500:
		return "4xx"
	case o.StatusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
