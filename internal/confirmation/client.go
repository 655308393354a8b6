package confirmation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/booking-cascade/pkg/logging"
)

const (
	defaultSubmitTimeout = 15 * time.Second
	maxLoggedBody        = 300
)

// HTTPSubmitter posts confirmed bookings to the clinic's confirmation
// endpoint as a classic form post.
type HTTPSubmitter struct {
	httpClient *http.Client
	endpoint   string
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewHTTPSubmitter constructs a submitter for endpoint.
func NewHTTPSubmitter(endpoint string, timeout time.Duration, logger *logging.Logger) *HTTPSubmitter {
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPSubmitter{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimSpace(endpoint),
		logger:     logger.Component("confirmation.http"),
		tracer:     otel.Tracer("booking.internal.confirmation"),
	}
}

// Submit posts fechaCita, horaCita and idMedico, plus idEspecialidad and
// idPaciente when known.
func (s *HTTPSubmitter) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "confirmation.submit", trace.WithAttributes(
		attribute.String("booking.provider_id", sub.ProviderID),
		attribute.String("booking.date", sub.Date),
	))
	defer span.End()

	form := url.Values{}
	form.Set("fechaCita", sub.Date)
	form.Set("horaCita", sub.Time)
	form.Set("idMedico", sub.ProviderID)
	if sub.SpecialtyID != "" {
		form.Set("idEspecialidad", sub.SpecialtyID)
	}
	if sub.PatientID != "" {
		form.Set("idPaciente", sub.PatientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		span.RecordError(err)
		return Receipt{}, fmt.Errorf("confirmation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return Receipt{}, fmt.Errorf("confirmation: http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxLoggedBody {
			msg = msg[:maxLoggedBody]
		}
		s.logger.Warn("booking endpoint non-2xx response", "status", resp.StatusCode, "body", msg)
		err := &SubmitError{StatusCode: resp.StatusCode, Body: msg}
		span.RecordError(err)
		return Receipt{}, err
	}

	return Receipt{StatusCode: resp.StatusCode, Location: resp.Request.URL.String()}, nil
}
