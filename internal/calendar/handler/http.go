package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"pulsedeck/internal/calendar/service"
	"pulsedeck/internal/logging"
)

// Exporter renders calendar feeds.
type Exporter interface {
	Export(ctx context.Context, req service.Request) ([]byte, error)
}

// Handlers serves calendar feeds over HTTP.
type Handlers struct {
	exporter Exporter
	log      logrus.FieldLogger
}

// NewHandlers returns calendar HTTP handlers. log may be nil.
func NewHandlers(exporter Exporter, log logrus.FieldLogger) *Handlers {
	return &Handlers{exporter: exporter, log: logging.OrDiscard(log)}
}

// RegisterRoutes registers the feed routes on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ical", h.Feed).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ical/{token}.ics", h.Feed).Methods(http.MethodGet, http.MethodHead)
}

// Feed handles GET /ical?token=...|org=... and GET /ical/{token}.ics.
// A bearer Authorization header is accepted as the token too.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	req := service.Request{
		Token:          mux.Vars(r)["token"],
		OrganizationID: r.URL.Query().Get("org"),
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	if req.Token == "" {
		req.Token = bearerToken(r)
	}

	body, err := h.exporter.Export(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.WithError(err).Error("calendar: export failed")
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrOrganizationNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}
