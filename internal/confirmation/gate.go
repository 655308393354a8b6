// Package confirmation guards the final step of the booking form: the
// completeness check, the confirmation modal and the single hand-off of
// the booking to the clinic.
package confirmation

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/booking-cascade/internal/cascade"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// Form is the part of a cascade controller the gate reads from.
type Form interface {
	Snapshot(ctx context.Context) (cascade.FormState, error)
	Notify(ctx context.Context, n cascade.Notice) error
}

// Submitter hands a confirmed booking to the clinic.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (Receipt, error)
}

// Receipt describes an accepted submission.
type Receipt struct {
	StatusCode int    `json:"statusCode"`
	Location   string `json:"location,omitempty"`
}

// SubmissionObserver records submission outcomes.
type SubmissionObserver interface {
	ObserveSubmission(outcome string)
}

// Phase is the modal's lifecycle.
type Phase string

const (
	PhaseClosed     Phase = "closed"
	PhaseOpen       Phase = "open"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
)

// Notice texts shown by the page.
const (
	MessageIncomplete   = "Por favor, completa todos los campos antes de confirmar la cita."
	MessageSubmitFailed = "No se pudo confirmar la cita. Por favor, intenta de nuevo."
	MessageSubmitted    = "Cita reservada correctamente."
)

// Options configures a Gate.
type Options struct {
	PatientID string
	Logger    *logging.Logger
	Metrics   SubmissionObserver
}

// Gate decides when the booking may be confirmed and makes sure each
// confirmation results in at most one hand-off.
type Gate struct {
	form      Form
	submitter Submitter
	patientID string
	logger    *logging.Logger
	metrics   SubmissionObserver
	validate  *validator.Validate

	mu      sync.Mutex
	phase   Phase
	receipt *Receipt
}

// NewGate builds a gate over form.
func NewGate(form Form, submitter Submitter, opts Options) *Gate {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Gate{
		form:      form,
		submitter: submitter,
		patientID: opts.PatientID,
		logger:    opts.Logger.Component("confirmation"),
		metrics:   opts.Metrics,
		validate:  newValidator(),
		phase:     PhaseClosed,
	}
}

// Phase returns the current modal phase.
func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Receipt returns the accepted submission, if any.
func (g *Gate) Receipt() (Receipt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.receipt == nil {
		return Receipt{}, false
	}
	return *g.receipt, true
}

// CanConfirm reports whether all four fields hold a value.
func (g *Gate) CanConfirm(ctx context.Context) bool {
	state, err := g.form.Snapshot(ctx)
	if err != nil {
		return false
	}
	return g.check(state) == nil
}

func (g *Gate) check(state cascade.FormState) error {
	return validateSubmission(g.validate, SubmissionFromState(state, g.patientID))
}

// OpenConfirmation opens the modal when the form is complete. Otherwise a
// notice is raised on the form and a *ValidationError returned.
func (g *Gate) OpenConfirmation(ctx context.Context) error {
	state, err := g.form.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := g.check(state); err != nil {
		g.notify(ctx, cascade.NoticeError, MessageIncomplete)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.phase {
	case PhaseSubmitting:
		return ErrSubmitInFlight
	case PhaseSubmitted:
		return ErrAlreadySubmitted
	}
	g.phase = PhaseOpen
	return nil
}

// CloseConfirmation hides the modal. It does nothing while a submission is
// in flight or after it succeeded.
func (g *Gate) CloseConfirmation() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseOpen {
		g.phase = PhaseClosed
	}
}

// Submit hands the booking to the submitter. It is accepted only from an
// open modal, and a second call while the first is pending or after it
// succeeded is rejected. A failed hand-off reopens the modal.
func (g *Gate) Submit(ctx context.Context) (Receipt, error) {
	if g.submitter == nil {
		return Receipt{}, ErrNoSubmitter
	}
	g.mu.Lock()
	switch g.phase {
	case PhaseClosed:
		g.mu.Unlock()
		return Receipt{}, ErrNotOpen
	case PhaseSubmitting:
		g.mu.Unlock()
		return Receipt{}, ErrSubmitInFlight
	case PhaseSubmitted:
		g.mu.Unlock()
		return Receipt{}, ErrAlreadySubmitted
	}
	g.phase = PhaseSubmitting
	g.mu.Unlock()

	state, err := g.form.Snapshot(ctx)
	if err != nil {
		g.setPhase(PhaseOpen)
		return Receipt{}, err
	}
	submission := SubmissionFromState(state, g.patientID)
	if err := validateSubmission(g.validate, submission); err != nil {
		// The form changed under the open modal.
		g.setPhase(PhaseClosed)
		g.notify(ctx, cascade.NoticeError, MessageIncomplete)
		g.observe("incomplete")
		return Receipt{}, err
	}

	receipt, err := g.submitter.Submit(ctx, submission)
	if err != nil {
		g.setPhase(PhaseOpen)
		g.logger.Warn("booking submission failed", "provider_id", submission.ProviderID, "date", submission.Date, "time", submission.Time, "error", err)
		g.notify(ctx, cascade.NoticeError, MessageSubmitFailed)
		if errors.Is(err, ErrRejected) {
			g.observe("rejected")
		} else {
			g.observe("failed")
		}
		return Receipt{}, err
	}

	g.mu.Lock()
	g.phase = PhaseSubmitted
	g.receipt = &receipt
	g.mu.Unlock()

	g.logger.Info("booking submitted", "provider_id", submission.ProviderID, "date", submission.Date, "time", submission.Time)
	g.notify(ctx, cascade.NoticeInfo, MessageSubmitted)
	g.observe("accepted")
	return receipt, nil
}

func (g *Gate) setPhase(p Phase) {
	g.mu.Lock()
	g.phase = p
	g.mu.Unlock()
}

func (g *Gate) notify(ctx context.Context, level cascade.NoticeLevel, msg string) {
	if err := g.form.Notify(ctx, cascade.Notice{Level: level, Message: msg}); err != nil {
		g.logger.Debug("could not publish confirmation notice", "error", err)
	}
}

func (g *Gate) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.ObserveSubmission(outcome)
	}
}
