// Package recordapi is the HTTP client for the external Patient Record
// REST API. All calls pass through a circuit breaker so a flapping upstream
// fails fast instead of tying up portal requests.
package recordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/record"
)

const maxBodySize = 1 << 20 // 1MB

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Metrics, when set, receives upstream failure counts and breaker
	// state transitions.
	Metrics *metrics.Metrics
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// breakerStateValue encodes breaker states for the state gauge:
// 0=closed, 1=open, 2=half-open.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("recordapi: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "record-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.Metrics != nil {
				cfg.Metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
	}
	if cfg.Metrics != nil {
		cfg.Metrics.BreakerState.WithLabelValues(settings.Name).Set(breakerStateValue(gobreaker.StateClosed))
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

type reply struct {
	status int
	body   []byte
}

// send executes one request through the breaker. Transport errors and 5xx
// replies count as breaker failures; 4xx replies do not, they indicate a
// healthy upstream rejecting this particular request.
func (c *Client) send(req *http.Request) (reply, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: parseMessage(raw)}
		}
		return reply{status: resp.StatusCode, body: raw}, nil
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamFailures.Inc()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return reply{}, fmt.Errorf("record api unavailable: %w", err)
		}
		return reply{}, err
	}
	return res.(reply), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r, err := c.send(req)
	if err != nil {
		return err
	}
	if r.status < 200 || r.status >= 300 {
		return &APIError{StatusCode: r.status, Message: parseMessage(r.body)}
	}
	if out == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// List fetches the full record collection. Both a bare array and the
// {"patients": [...]} envelope are accepted.
func (c *Client) List(ctx context.Context) ([]record.PatientRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	r, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if r.status < 200 || r.status >= 300 {
		return nil, &APIError{StatusCode: r.status, Message: parseMessage(r.body)}
	}

	var raw []wireRecord
	if err := json.Unmarshal(r.body, &raw); err != nil {
		var envelope struct {
			Patients []wireRecord `json:"patients"`
		}
		if err := json.Unmarshal(r.body, &envelope); err != nil {
			return nil, fmt.Errorf("decode record list: %w", err)
		}
		raw = envelope.Patients
	}

	out := make([]record.PatientRecord, 0, len(raw))
	for _, w := range raw {
		out = append(out, w.normalized())
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (record.PatientRecord, error) {
	var env recordEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/records/"+id, nil, &env); err != nil {
		return record.PatientRecord{}, err
	}
	return env.record(), nil
}

func (c *Client) CreateRecord(ctx context.Context, p record.Payload) (record.PatientRecord, error) {
	var env recordEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/records", p, &env); err != nil {
		return record.PatientRecord{}, err
	}
	return env.record(), nil
}

func (c *Client) UpdateRecord(ctx context.Context, id string, p record.Payload) (record.PatientRecord, error) {
	var env recordEnvelope
	if err := c.doJSON(ctx, http.MethodPut, "/records/"+id, p, &env); err != nil {
		return record.PatientRecord{}, err
	}
	return env.record(), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/records/"+id, nil, nil)
}

// UploadLabResult attaches a lab image via multipart upload.
func (c *Client) UploadLabResult(ctx context.Context, id, filename string, file io.Reader) (LabImage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return LabImage{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return LabImage{}, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return LabImage{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records/"+id+"/lab-results", &buf)
	if err != nil {
		return LabImage{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	r, err := c.send(req)
	if err != nil {
		return LabImage{}, err
	}
	if r.status < 200 || r.status >= 300 {
		return LabImage{}, &APIError{StatusCode: r.status, Message: parseMessage(r.body)}
	}

	var img LabImage
	if len(r.body) > 0 {
		if err := json.Unmarshal(r.body, &img); err != nil {
			return LabImage{}, fmt.Errorf("decode upload reply: %w", err)
		}
	}
	return img, nil
}

func (c *Client) DeleteLabResult(ctx context.Context, id, imageID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/records/"+id+"/lab-results/"+imageID, nil, nil)
}

// Sub-resource entry endpoints. Some API variants replace the whole array
// on update instead; these cover the ones that append server-side.

func (c *Client) AddTreatment(ctx context.Context, id string, t record.TreatmentEntry) error {
	return c.doJSON(ctx, http.MethodPost, "/records/"+id+"/treatment", t, nil)
}

func (c *Client) DeleteTreatment(ctx context.Context, id string, index int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/records/%s/treatment/%d", id, index), nil, nil)
}

func (c *Client) AddVaccination(ctx context.Context, id string, v record.VaccinationEntry) error {
	return c.doJSON(ctx, http.MethodPost, "/records/"+id+"/vaccination", v, nil)
}

func (c *Client) DeleteVaccination(ctx context.Context, id string, index int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/records/%s/vaccination/%d", id, index), nil, nil)
}
