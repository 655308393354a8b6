package bootstrap

import (
	"fmt"
	"net/url"
	"strings"

	appconfig "github.com/wolfman30/booking-cascade/internal/config"
	"github.com/wolfman30/booking-cascade/internal/confirmation"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// BuildSubmitter wires the booking hand-off. It returns nil when no submit
// URL is configured; forms then refuse to submit.
func BuildSubmitter(cfg *appconfig.Config, logger *logging.Logger) (confirmation.Submitter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	endpoint := strings.TrimSpace(cfg.SubmitURL)
	if endpoint == "" {
		logger.Warn("SUBMIT_URL not set; booking submission disabled")
		return nil, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bootstrap: invalid submit url %q", endpoint)
	}
	return confirmation.NewHTTPSubmitter(endpoint, cfg.FetchTimeout, logger), nil
}
