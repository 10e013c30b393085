package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wadjakorntonsri/go-callback-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

const maxBodyBytes = 64 << 10

type HTTPHandler struct {
	service       ports.LinkService
	validate      *validator.Validate
	publicBaseURL string
	trustProxy    bool
}

func NewHTTPHandler(service ports.LinkService, publicBaseURL string, trustProxy bool) *HTTPHandler {
	return &HTTPHandler{
		service:       service,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		publicBaseURL: publicBaseURL,
		trustProxy:    trustProxy,
	}
}

// CreateLinkResponse payload
type CreateLinkResponse struct {
	Link string `json:"link"`
}

// Create Link
func (h *HTTPHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req domain.LinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_body", "request body must be a JSON object")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", validationMessage(err))
		return
	}

	link, err := h.service.CreateLink(r.Context(), req, resolveBaseURL(r, h.publicBaseURL, h.trustProxy))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) {
			writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
		LoggerFrom(r.Context()).Error().Err(err).Msg("create link failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, CreateLinkResponse{Link: link})
}

// Redirect to the link destination and schedule the callback on first visit
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	query := r.URL.Query()

	dest, err := h.service.Redeem(r.Context(), token, query.Get("state"), query.Has("state"), resolveBaseURL(r, h.publicBaseURL, h.trustProxy))
	switch {
	case err == nil:
		http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
	case errors.Is(err, domain.ErrMissingState):
		writeError(w, r, http.StatusBadRequest, "state_required", "State is required")
	case errors.Is(err, domain.ErrTampered), errors.Is(err, domain.ErrExpired):
		// one message for both so the response is no oracle
		LoggerFrom(r.Context()).Debug().Err(err).Msg("link rejected")
		writeError(w, r, http.StatusBadRequest, "invalid_link", "invalid or expired link")
	case errors.Is(err, domain.ErrBackendUnavailable):
		LoggerFrom(r.Context()).Error().Err(err).Msg("dedup backend unavailable")
		writeError(w, r, http.StatusServiceUnavailable, "backend_unavailable", "service temporarily unavailable")
	default:
		LoggerFrom(r.Context()).Error().Err(err).Msg("redeem failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := jsonFieldNames[fe.Field()]
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "http_url":
		return field + " must be an http(s) URL"
	case "min", "max":
		return field + " must be between 1 and 3600"
	default:
		return field + " is invalid"
	}
}

var jsonFieldNames = map[string]string{
	"CallbackURL": "callback_url",
	"Seconds":     "seconds",
	"RedirectURL": "redirect_url",
	"State":       "state",
}
