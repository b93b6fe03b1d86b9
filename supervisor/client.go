package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/resilience"
)

// Client talks to a running supervisor's management API.
type Client struct {
	base string
	http *http.Client
	// retry applies to reads only; control requests are sent once.
	retry resilience.RetryConfig
}

// NewClient returns a client for the API at addr, given as host:port or as a
// full URL.
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	retry := resilience.DefaultRetryConfig()
	retry.RetryIf = func(err error) bool {
		return apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable)
	}
	return &Client{
		base:  strings.TrimRight(addr, "/"),
		http:  &http.Client{Timeout: 30 * time.Second},
		retry: retry,
	}
}

// Status lists every instance. An unreachable supervisor is retried a few
// times, which covers one that is still starting.
func (c *Client) Status(ctx context.Context) ([]InstanceStatus, error) {
	return c.read(ctx, PathProcesses)
}

// AppStatus lists the instances of app name.
func (c *Client) AppStatus(ctx context.Context, name string) ([]InstanceStatus, error) {
	return c.read(ctx, processPath(name))
}

func (c *Client) read(ctx context.Context, path string) ([]InstanceStatus, error) {
	return resilience.Retry(ctx, c.retry, func() ([]InstanceStatus, error) {
		return call[[]InstanceStatus](c, ctx, http.MethodGet, path)
	})
}

// Restart asks the supervisor to restart app name.
func (c *Client) Restart(ctx context.Context, name string) (*ActionResult, error) {
	return c.action(ctx, name, "restart")
}

// Stop asks the supervisor to stop app name.
func (c *Client) Stop(ctx context.Context, name string) (*ActionResult, error) {
	return c.action(ctx, name, "stop")
}

// Start asks the supervisor to start app name.
func (c *Client) Start(ctx context.Context, name string) (*ActionResult, error) {
	return c.action(ctx, name, "start")
}

func (c *Client) action(ctx context.Context, name, action string) (*ActionResult, error) {
	res, err := call[ActionResult](c, ctx, http.MethodPost, processPath(name)+"/"+action)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func processPath(name string) string {
	return PathProcesses + "/" + url.PathEscape(name)
}

// call performs a request and decodes the data envelope into T. Error
// responses come back as *apperrors.AppError, and so do a supervisor that
// cannot be reached (SERVICE_UNAVAILABLE) and one that does not answer in
// time (TIMEOUT).
func call[T any](c *Client, ctx context.Context, method, path string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, http.NoBody)
	if err != nil {
		return zero, fmt.Errorf("supervisor client: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if timedOut(err) {
			return zero, apperrors.Timeout(method + " " + path).WithCause(err)
		}
		return zero, apperrors.ServiceUnavailable(c.base).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("supervisor client: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var er apperrors.ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Code != "" {
			appErr := apperrors.New(er.Error.Code, er.Error.Message, resp.StatusCode)
			appErr.Details = er.Error.Details
			return zero, appErr
		}
		return zero, fmt.Errorf("supervisor client: %s %s: HTTP %d", method, path, resp.StatusCode)
	}

	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return zero, fmt.Errorf("supervisor client: decode response: %w", err)
	}
	return envelope.Data, nil
}

func timedOut(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
