// Package eligibility asks the safety-violation service whether a drawn
// winner may receive a prize. The proxy only relays the answer.
package eligibility

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrGatewayUnavailable means no answer could be obtained.
	ErrGatewayUnavailable = errors.New("eligibility service unavailable")
	// ErrEmptyName is returned for a blank employee name.
	ErrEmptyName = errors.New("employee name is required")
)

// Result is the eligibility verdict for one employee.
type Result struct {
	EmployeeName string `json:"employee_name"`
	// Eligible is nil when the service could not decide.
	Eligible       *bool     `json:"is_eligible"`
	FoundInVendor  bool      `json:"found_in_kpa"`
	ViolationCount int       `json:"violation_count"`
	Reason         string    `json:"reason,omitempty"`
	CheckedAt      time.Time `json:"check_date,omitempty"`
}

// Gateway answers eligibility questions.
type Gateway interface {
	Check(ctx context.Context, employeeName string) (Result, error)
}

// Unconfigured is used when no service URL is set.
type Unconfigured struct{}

func (Unconfigured) Check(context.Context, string) (Result, error) {
	return Result{}, fmt.Errorf("%w: no service url configured", ErrGatewayUnavailable)
}

// HTTPGateway posts {"employee_name": ...} to the safety service.
type HTTPGateway struct {
	url    string
	client *http.Client
}

// NewHTTPGateway creates a gateway for url. timeout <= 0 selects 30s.
func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPGateway{url: url, client: &http.Client{Timeout: timeout}}
}

// New returns an HTTPGateway, or Unconfigured when url is empty.
func New(url string, timeout time.Duration) Gateway {
	if strings.TrimSpace(url) == "" {
		return Unconfigured{}
	}
	return NewHTTPGateway(url, timeout)
}

// Check asks the service about employeeName.
func (g *HTTPGateway) Check(ctx context.Context, employeeName string) (Result, error) {
	name := strings.TrimSpace(employeeName)
	if name == "" {
		return Result{}, ErrEmptyName
	}

	payload, err := json.Marshal(map[string]string{"employee_name": name})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build eligibility request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logging.Logger.Warn("Eligibility check failed",
			zap.String("employee", name),
			zap.Int("status", resp.StatusCode))
		return Result{}, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if result.EmployeeName == "" {
		result.EmployeeName = name
	}
	return result, nil
}
