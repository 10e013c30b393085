// Package notifier delivers callback notifications over HTTP.
package notifier

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/wadjakorntonsri/go-callback-links/pkg/config"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "callback-links/1.0"
)

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// HTTPClient replaces the default transport, e.g. an OAuth2 client.
	HTTPClient *http.Client
}

// WebhookNotifier POSTs the notification as JSON, once, under a fixed timeout.
type WebhookNotifier struct {
	client *resty.Client
}

func NewWebhookNotifier(opts Options) *WebhookNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Content-Type", "application/json").
		SetRedirectPolicy(keepRedirectResponse)

	return &WebhookNotifier{client: client}
}

// keepRedirectResponse stops at the first 3xx and hands it back as the
// response instead of an error.
var keepRedirectResponse = resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
})

// OAuthClient returns an *http.Client that attaches client-credentials
// bearer tokens, or nil when cfg is not enabled.
func OAuthClient(ctx context.Context, cfg config.OAuthConfig) *http.Client {
	if !cfg.Enabled() {
		return nil
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return cc.Client(ctx)
}

// Deliver never returns an error: any HTTP response counts as delivered
// with its status code, transport errors and timeouts as failed.
func (n *WebhookNotifier) Deliver(ctx context.Context, target string, payload domain.Notification) domain.DeliveryOutcome {
	start := time.Now()
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(target)

	var out domain.DeliveryOutcome
	if err != nil {
		out = domain.Failed(err.Error())
	} else {
		out = domain.Delivered(resp.StatusCode())
	}
	out.Duration = time.Since(start)
	return out
}
