package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sony/gobreaker"

	"github.com/anjali-yatham/Medisense/pkg/logger"
)

const defaultBaseURL = "https://www.fast2sms.com/dev/bulkV2"

// Config holds the transport credentials; secrets come from the
// environment only, never from config files.
type Config struct {
	APIKey  string        `envconfig:"FAST2SMS_API_KEY" required:"true"`
	BaseURL string        `envconfig:"FAST2SMS_BASE_URL"`
	Timeout time.Duration `envconfig:"FAST2SMS_TIMEOUT" default:"10s"`
}

// LoadConfig reads the transport configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load SMS config: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &cfg, nil
}

// Fast2SMSSender sends over the Fast2SMS Quick SMS route. Calls go
// through a circuit breaker so a degraded provider fails fast instead of
// stalling every delivery cycle.
type Fast2SMSSender struct {
	cfg    Config
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *logger.Logger
}

func NewFast2SMSSender(cfg Config, logger *logger.Logger) *Fast2SMSSender {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "fast2sms",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Fast2SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb:     cb,
		logger: logger,
	}
}

type fast2smsResponse struct {
	Return  bool   `json:"return"`
	Message string `json:"message"`
}

func (s *Fast2SMSSender) Send(ctx context.Context, to, text string) error {
	number := NormalizePhone(to)
	if number == "" {
		return ErrInvalidNumber
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.send(ctx, number, text)
	})
	return err
}

func (s *Fast2SMSSender) send(ctx context.Context, number, text string) error {
	params := url.Values{}
	params.Set("authorization", s.cfg.APIKey)
	params.Set("message", text)
	params.Set("language", "english")
	params.Set("route", "q")
	params.Set("numbers", number)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS request failed: %w", err)
	}
	defer resp.Body.Close()

	var body fast2smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !body.Return {
		s.logger.Warn("SMS provider rejected send",
			"status", resp.StatusCode, "provider_message", body.Message)
		return fmt.Errorf("SMS provider rejected send: status=%d message=%s", resp.StatusCode, body.Message)
	}

	return nil
}
