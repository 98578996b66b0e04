package browser

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

	"github.com/jmylchreest/farewatch/internal/logger"
)

// Clearance errors.
var (
	ErrClearanceUnavailable = errors.New("clearance service unavailable")
	ErrClearanceFailed      = errors.New("clearance failed")
)

// Clearance asks a FlareSolverr instance to open a URL and hands back the
// cookies it earned, so the real session starts already cleared.
type Clearance struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewClearance creates a client for the FlareSolverr API at endpoint
// (e.g. http://localhost:8191/v1). timeout is the solve budget passed to the
// service.
func NewClearance(endpoint string, timeout time.Duration) *Clearance {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Clearance{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout + 30*time.Second},
	}
}

type clearanceRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int64  `json:"maxTimeout"`
}

type clearanceResponse struct {
	Status   string             `json:"status"`
	Message  string             `json:"message"`
	Solution *clearanceSolution `json:"solution"`
}

type clearanceSolution struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	UserAgent string            `json:"userAgent"`
	Cookies   []clearanceCookie `json:"cookies"`
}

type clearanceCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Grant is what a successful clearance returns.
type Grant struct {
	Cookies   []Cookie
	UserAgent string
}

// Solve requests targetURL through the service.
func (c *Clearance) Solve(ctx context.Context, targetURL string) (Grant, error) {
	body, err := json.Marshal(clearanceRequest{
		Cmd:        "request.get",
		URL:        targetURL,
		MaxTimeout: c.timeout.Milliseconds(),
	})
	if err != nil {
		return Grant{}, fmt.Errorf("encoding clearance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Grant{}, fmt.Errorf("creating clearance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrClearanceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Grant{}, fmt.Errorf("reading clearance response: %w", err)
	}

	// Errors come back as 500 with a JSON body, so decode before looking at the status.
	var out clearanceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Grant{}, fmt.Errorf("%w: status %d: unreadable response", ErrClearanceUnavailable, resp.StatusCode)
	}
	if !strings.EqualFold(out.Status, "ok") {
		return Grant{}, fmt.Errorf("%w: %s", ErrClearanceFailed, out.Message)
	}
	if out.Solution == nil {
		return Grant{}, fmt.Errorf("%w: no solution", ErrClearanceFailed)
	}

	grant := Grant{UserAgent: out.Solution.UserAgent}
	for _, ck := range out.Solution.Cookies {
		cookie := Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		}
		if ck.Expires > 0 {
			cookie.Expires = time.Unix(int64(ck.Expires), 0)
		}
		grant.Cookies = append(grant.Cookies, cookie)
	}

	logger.DebugContext(ctx, "clearance granted",
		"url", targetURL,
		"status_code", out.Solution.Status,
		"cookies", len(grant.Cookies))
	return grant, nil
}
