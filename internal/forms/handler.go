package forms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/booking-cascade/internal/cascade"
	"github.com/wolfman30/booking-cascade/internal/confirmation"
	"github.com/wolfman30/booking-cascade/internal/http/middleware"
	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

const (
	maxCommandBody  = 4 << 10
	defaultWaitTime = 10 * time.Second
)

// MessageLoginRequired is shown when an anonymous visitor tries to confirm.
const MessageLoginRequired = "Inicia sesión para confirmar tu cita."

// HandlerConfig configures the form host.
type HandlerConfig struct {
	// RequirePatient rejects submissions from sessions without a patient.
	RequirePatient bool
	// WaitTimeout bounds ?wait=true.
	WaitTimeout time.Duration
}

// Handler exposes form sessions over HTTP.
type Handler struct {
	manager *Manager
	cfg     HandlerConfig
	logger  *logging.Logger
}

// FormView is the JSON shape of a form session.
type FormView struct {
	ID           string            `json:"id"`
	State        cascade.FormState `json:"state"`
	Confirmation ConfirmationView  `json:"confirmation"`
}

// ConfirmationView is the JSON shape of the confirmation gate.
type ConfirmationView struct {
	CanConfirm bool                  `json:"canConfirm"`
	Phase      confirmation.Phase    `json:"phase"`
	Receipt    *confirmation.Receipt `json:"receipt,omitempty"`
}

type commandRequest struct {
	Value string `json:"value"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// NewHandler creates the form host handler.
func NewHandler(manager *Manager, cfg HandlerConfig, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTime
	}
	return &Handler{manager: manager, cfg: cfg, logger: logger.Component("forms.http")}
}

// Routes returns the form host routes, to be mounted under /forms.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateForm)
	r.Route("/{formID}", func(r chi.Router) {
		r.Get("/", h.GetForm)
		r.Delete("/", h.DeleteForm)
		r.Post("/specialty", h.fieldCommand(func(ctx context.Context, c *cascade.Controller, v string) error {
			return c.SpecialtyChanged(ctx, v)
		}))
		r.Post("/provider", h.fieldCommand(func(ctx context.Context, c *cascade.Controller, v string) error {
			return c.ProviderChanged(ctx, v)
		}))
		r.Post("/date", h.fieldCommand(func(ctx context.Context, c *cascade.Controller, v string) error {
			return c.DateChanged(ctx, v)
		}))
		r.Post("/time", h.fieldCommand(func(ctx context.Context, c *cascade.Controller, v string) error {
			return c.TimeChanged(ctx, v)
		}))
		r.Post("/specialties/reload", h.ReloadSpecialties)
		r.Get("/confirmation", h.GetConfirmation)
		r.Post("/confirmation/open", h.OpenConfirmation)
		r.Post("/confirmation/close", h.CloseConfirmation)
		r.Post("/confirmation/submit", h.SubmitConfirmation)
		r.Get("/events", h.HandleEvents)
	})
	return r
}

// CreateForm opens a new form session.
// POST /forms
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.Create(middleware.PatientIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("failed to create form session", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if waitRequested(r) {
		if err := h.wait(r.Context(), session); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeView(w, r, session, http.StatusCreated)
}

// GetForm returns the form state and confirmation status.
// GET /forms/{formID}
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if waitRequested(r) {
		if err := h.wait(r.Context(), session); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeView(w, r, session, http.StatusOK)
}

// DeleteForm closes a form session.
// DELETE /forms/{formID}
func (h *Handler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	formID := strings.TrimSpace(chi.URLParam(r, "formID"))
	if err := h.manager.Close(formID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fieldCommand(apply func(ctx context.Context, c *cascade.Controller, value string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := h.session(w, r)
		if !ok {
			return
		}
		var req commandRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxCommandBody)).Decode(&req); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := apply(r.Context(), session.Controller, strings.TrimSpace(req.Value)); err != nil {
			h.writeError(w, err)
			return
		}
		if waitRequested(r) {
			if err := h.wait(r.Context(), session); err != nil {
				h.writeError(w, err)
				return
			}
		}
		h.writeView(w, r, session, http.StatusOK)
	}
}

// ReloadSpecialties drops the cached catalog and loads the specialties again.
// POST /forms/{formID}/specialties/reload
func (h *Handler) ReloadSpecialties(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.manager.invalidateCatalog(r.Context())
	if err := session.Controller.ReloadSpecialties(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	if waitRequested(r) {
		if err := h.wait(r.Context(), session); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeView(w, r, session, http.StatusOK)
}

// GetConfirmation reports whether the form can be confirmed.
// GET /forms/{formID}/confirmation
func (h *Handler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, confirmationView(r.Context(), session))
}

// OpenConfirmation opens the confirmation modal.
// POST /forms/{formID}/confirmation/open
func (h *Handler) OpenConfirmation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Gate.OpenConfirmation(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationView(r.Context(), session))
}

// CloseConfirmation closes the confirmation modal.
// POST /forms/{formID}/confirmation/close
func (h *Handler) CloseConfirmation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Gate.CloseConfirmation()
	writeJSON(w, http.StatusOK, confirmationView(r.Context(), session))
}

// SubmitConfirmation hands the booking to the clinic. The caller's patient
// token must name the patient the form was opened for.
// POST /forms/{formID}/confirmation/submit
func (h *Handler) SubmitConfirmation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.cfg.RequirePatient && session.PatientID == "" {
		_ = session.Controller.Notify(r.Context(), cascade.Notice{Level: cascade.NoticeError, Message: MessageLoginRequired})
		jsonError(w, "patient login required", http.StatusUnauthorized)
		return
	}
	if caller := middleware.PatientIDFromContext(r.Context()); caller != session.PatientID {
		h.logger.Warn("submission patient mismatch", "form_id", session.ID, "has_token", caller != "")
		jsonError(w, "form belongs to another patient", http.StatusForbidden)
		return
	}
	receipt, err := session.Gate.Submit(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	view := confirmationView(r.Context(), session)
	view.Receipt = &receipt
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	formID := strings.TrimSpace(chi.URLParam(r, "formID"))
	if formID == "" {
		jsonError(w, "missing formID", http.StatusBadRequest)
		return nil, false
	}
	session, err := h.manager.Get(formID)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) wait(ctx context.Context, session *Session) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.WaitTimeout)
	defer cancel()
	return session.Controller.WaitIdle(ctx)
}

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, session *Session, status int) {
	state, err := session.Controller.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, status, FormView{
		ID:           session.ID,
		State:        state,
		Confirmation: confirmationView(r.Context(), session),
	})
}

func confirmationView(ctx context.Context, session *Session) ConfirmationView {
	view := ConfirmationView{
		CanConfirm: session.Gate.CanConfirm(ctx),
		Phase:      session.Gate.Phase(),
	}
	if receipt, ok := session.Gate.Receipt(); ok {
		view.Receipt = &receipt
	}
	return view
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *confirmation.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Missing: verr.Missing, Invalid: verr.Invalid})
	case errors.Is(err, ErrSessionNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, cascade.ErrClosed):
		jsonError(w, err.Error(), http.StatusGone)
	case errors.Is(err, cascade.ErrUnknownOption),
		errors.Is(err, cascade.ErrDateOutOfRange),
		errors.Is(err, cascade.ErrSlotElapsed),
		errors.Is(err, schedule.ErrInvalidDate):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, cascade.ErrFieldDisabled),
		errors.Is(err, confirmation.ErrNotOpen),
		errors.Is(err, confirmation.ErrSubmitInFlight),
		errors.Is(err, confirmation.ErrAlreadySubmitted):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, confirmation.ErrNoSubmitter):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, confirmation.ErrRejected):
		jsonError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		jsonError(w, "timed out waiting for the form", http.StatusGatewayTimeout)
	default:
		h.logger.Error("form request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func waitRequested(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("wait")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}
