package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/tracing"
)

var codec = sonic.Config{UseNumber: true}.Froze()

// Options configures a Client
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// MaxFailures consecutive server failures open the breaker
	MaxFailures  uint32
	BreakerReset time.Duration
	Logger       *zap.Logger
}

// DefaultOptions returns client options for a server at baseURL
func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:      baseURL,
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		MaxFailures:  5,
		BreakerReset: 30 * time.Second,
	}
}

// Client talks to the snapshot API. Transient failures are retried by the
// transport; repeated server failures open a circuit breaker.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s: %s", e.Status, msg, e.Detail)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// RawSnapshot is a stored document with its metadata
type RawSnapshot struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Raw       json.RawMessage `json:"raw"`
	CreatedAt string          `json:"created_at"`
}

// New creates an API client
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = leveledLogger{logger.Sugar()}
	// Hand the last response back instead of a "giving up" error.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetHeader("User-Agent", "snapctl/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(codec.Marshal).
		SetJSONUnmarshaler(codec.Unmarshal).
		SetError(&APIError{}).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			tracing.Inject(r.Context(), r.Header)
			return nil
		})

	settings := resilience.Settings{
		Probes:   1,
		Cooldown: opts.BreakerReset,
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("API circuit breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	}
	if opts.MaxFailures > 0 {
		settings.Trip = resilience.FailureThreshold(opts.MaxFailures)
	}

	return &Client{
		resty:   restyClient,
		breaker: resilience.New("snapshot-api", settings),
	}
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// do sends r through the breaker and turns error statuses into *APIError
func (c *Client) do(r *resty.Request, method, url string) (*resty.Response, error) {
	return resilience.Call(c.breaker, func() (*resty.Response, error) {
		resp, err := r.Execute(method, url)
		if err != nil {
			return resp, err
		}
		if resp.IsError() {
			apiErr, _ := resp.Error().(*APIError)
			if apiErr == nil {
				apiErr = &APIError{}
			}
			apiErr.Status = resp.StatusCode()
			return resp, apiErr
		}
		return resp, nil
	})
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.resty.R().SetContext(ctx).SetError(&APIError{})
}

// Health checks the server
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(c.request(ctx), resty.MethodGet, "/health")
	return err
}

// Upload sends the file at path as a snapshot
func (c *Client) Upload(ctx context.Context, path string) (*snapshot.Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return c.UploadReader(ctx, filepath.Base(path), bytes.NewReader(data))
}

// UploadReader sends one snapshot file as a multipart upload
func (c *Client) UploadReader(ctx context.Context, name string, r io.Reader) (*snapshot.Meta, error) {
	var meta snapshot.Meta
	req := c.request(ctx).
		SetFileReader("file", name, r).
		SetResult(&meta)
	if _, err := c.do(req, resty.MethodPost, "/api/snapshots"); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns stored snapshots newest first
func (c *Client) List(ctx context.Context) ([]snapshot.Meta, error) {
	var list []snapshot.Meta
	req := c.request(ctx).SetResult(&list)
	if _, err := c.do(req, resty.MethodGet, "/api/snapshots"); err != nil {
		return nil, err
	}
	return list, nil
}

// Raw returns the stored document
func (c *Client) Raw(ctx context.Context, id string) (*RawSnapshot, error) {
	var out RawSnapshot
	req := c.request(ctx).SetPathParam("id", id).SetResult(&out)
	if _, err := c.do(req, resty.MethodGet, "/api/snapshots/{id}"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Parsed returns the panel view of a snapshot
func (c *Client) Parsed(ctx context.Context, id string) (*snapshot.View, error) {
	var view snapshot.View
	req := c.request(ctx).SetPathParam("id", id).SetResult(&view)
	if _, err := c.do(req, resty.MethodGet, "/api/snapshots/{id}/parsed"); err != nil {
		return nil, err
	}
	return &view, nil
}

// Replace stores raw as the whole document of id
func (c *Client) Replace(ctx context.Context, id string, raw json.RawMessage, captured *int64) (*snapshot.Meta, error) {
	var meta snapshot.Meta
	req := c.request(ctx).
		SetPathParam("id", id).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"raw": raw, "time": captured}).
		SetResult(&meta)
	if _, err := c.do(req, resty.MethodPut, "/api/snapshots/{id}"); err != nil {
		return nil, err
	}
	return &meta, nil
}

// DeleteSnapshot removes a snapshot
func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	req := c.request(ctx).SetPathParam("id", id)
	_, err := c.do(req, resty.MethodDelete, "/api/snapshots/{id}")
	return err
}

// DeletePanel removes a panel and reports whether the snapshot went with it
func (c *Client) DeletePanel(ctx context.Context, id, panelID string) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted_snapshot"`
	}
	req := c.request(ctx).
		SetPathParams(map[string]string{"id": id, "panel": panelID}).
		SetResult(&out)
	if _, err := c.do(req, resty.MethodDelete, "/api/snapshots/{id}/panels/{panel}"); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// DeleteNode removes one tab and returns the updated view
func (c *Client) DeleteNode(ctx context.Context, id string, addr snapshot.NodeAddress, subtree bool) (*snapshot.View, error) {
	body := map[string]any{
		"panelId":       addr.PanelID,
		"groupIndex":    addr.GroupIndex,
		"indexInGroup":  addr.IndexInGroup,
		"deleteSubtree": subtree,
	}
	if addr.Level != nil {
		body["lvl"] = *addr.Level
	}

	var view snapshot.View
	req := c.request(ctx).
		SetPathParam("id", id).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&view)
	if _, err := c.do(req, resty.MethodPost, "/api/snapshots/{id}/nodes/delete"); err != nil {
		return nil, err
	}
	return &view, nil
}

// leveledLogger routes retryablehttp logs to zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
