// Package recognition wraps the remote recognition call.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const (
	formField    = "image"
	formFilename = "frame.jpg"

	// statusNoneRegistered is returned by the upstream when it has nobody to match against.
	statusNoneRegistered = "no_students_registered"

	maxResponseBytes = 1 << 20
	defaultTimeout   = 10 * time.Second
)

// Recognizer is the contract the sampler depends on.
type Recognizer interface {
	Recognize(ctx context.Context, frame model.Frame) (model.RecognitionResult, error)
}

// Client posts frames to the recognition service. It is stateless and never retries.
type Client struct {
	url    string
	client *http.Client
	log    logger.Logger
}

var _ Recognizer = (*Client)(nil)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.client = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// NewClient creates a client for the recognition endpoint at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("recognition")
	}
	return c
}

type recognizeResponse struct {
	RecognizedStudents []string `json:"recognized_students"`
	Count              int      `json:"count"`
	Status             string   `json:"status"`
}

// Recognize sends one frame and maps the response to a RecognitionResult.
// The result's CapturedAt is the frame's capture time.
func (c *Client) Recognize(ctx context.Context, frame model.Frame) (model.RecognitionResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRecognitionLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	body, contentType, err := encodeForm(frame.Data)
	if err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Trace-Id", frame.TraceID)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.RecognitionResult{}, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}

	if out.Status == statusNoneRegistered {
		c.log.Debug(ctx, "no identities registered upstream", logger.String("trace_id", frame.TraceID))
	}

	identities := out.RecognizedStudents
	if identities == nil {
		identities = []string{}
	}
	return model.RecognitionResult{Identities: identities, CapturedAt: frame.CapturedAt}, nil
}

func encodeForm(jpeg []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, formFilename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// Outcome classifies a completed recognition attempt.
type Outcome int

const (
	OutcomeTransportFailure Outcome = iota
	OutcomeNoMatch
	OutcomeMatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no_match"
	default:
		return "transport_failure"
	}
}

// Classify maps a Recognize return to an Outcome.
func Classify(result model.RecognitionResult, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeTransportFailure
	case len(result.Identities) == 0:
		return OutcomeNoMatch
	default:
		return OutcomeMatched
	}
}

// IsTransport reports whether err is a recognition transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
