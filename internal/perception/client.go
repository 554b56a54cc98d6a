package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

const (
	// DefaultTimeout bounds a single collaborator call.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxConns is the per-host connection pool size.
	DefaultMaxConns = 16

	maxErrorBody = 512
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	// BaseURL serves normalize, prefilter, analyze and match.
	BaseURL string
	// DetectorURL serves detect. Empty means BaseURL.
	DetectorURL string
	Timeout     time.Duration
	MaxConns    int
	// RateLimit caps requests per second across all endpoints. Zero means
	// unlimited.
	RateLimit float64
}

// Client is the HTTP implementation of Detector, Normalizer and Classifier.
// It owns its transport, so two clients never share connections.
type Client struct {
	baseURL     string
	detectorURL string
	transport   *http.Transport
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a client with its own connection pool.
func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	if opts.DetectorURL == "" {
		opts.DetectorURL = opts.BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        opts.MaxConns,
		MaxIdleConnsPerHost: opts.MaxConns,
		MaxConnsPerHost:     opts.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), int(math.Max(1, opts.RateLimit)))
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		detectorURL: strings.TrimRight(opts.DetectorURL, "/"),
		transport:   transport,
		httpClient:  &http.Client{Transport: transport, Timeout: opts.Timeout},
		limiter:     limiter,
		logger:      logger,
	}
}

// Close drops idle connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

type wireDetection struct {
	Box   [4]float64 `json:"box"`
	Score float64    `json:"score"`
	Label string     `json:"label"`
}

type detectResponse struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Detections []wireDetection `json:"detections"`
}

// Detect uploads the image to the detector.
func (c *Client) Detect(ctx context.Context, image []byte) (*DetectResult, error) {
	var resp detectResponse
	if err := c.postMultipart(ctx, c.detectorURL+"/api/detect", "file", [][]byte{image}, &resp); err != nil {
		return nil, err
	}

	out := &DetectResult{Width: resp.Width, Height: resp.Height}
	for _, d := range resp.Detections {
		out.Detections = append(out.Detections, layout.Detection{
			Box: geometry.Box{
				X1: int(math.Round(d.Box[0])),
				Y1: int(math.Round(d.Box[1])),
				X2: int(math.Round(d.Box[2])),
				Y2: int(math.Round(d.Box[3])),
			},
			Score: d.Score,
			Label: d.Label,
		})
	}
	return out, nil
}

// Normalize extracts structured attributes from prompt.
func (c *Client) Normalize(ctx context.Context, prompt string) (*NormalizedQuery, error) {
	var q NormalizedQuery
	if err := c.postJSON(ctx, c.baseURL+"/api/v1/normalize", map[string]string{"prompt": prompt}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

type prefilterSection struct {
	PositionMetadata layout.PositionMetadata `json:"position_metadata"`
	Image            string                  `json:"image"`
}

type prefilterRequest struct {
	NormalizedPrompt *NormalizedQuery   `json:"normalized_prompt"`
	Sections         []prefilterSection `json:"sections"`
	Relaxed          bool               `json:"relaxed"`
}

type prefilterResponse struct {
	Results []struct {
		LikelyContains bool `json:"likely_contains"`
	} `json:"results"`
}

// Prefilter asks whether section likely holds the target.
func (c *Client) Prefilter(ctx context.Context, section SectionInput, q *NormalizedQuery, relaxed bool) (bool, error) {
	req := prefilterRequest{
		NormalizedPrompt: q,
		Sections: []prefilterSection{{
			PositionMetadata: section.PositionMetadata,
			Image:            base64.StdEncoding.EncodeToString(section.Image),
		}},
		Relaxed: relaxed,
	}
	var resp prefilterResponse
	if err := c.postJSON(ctx, c.baseURL+"/api/v1/prefilter", req, &resp); err != nil {
		return false, err
	}
	if len(resp.Results) == 0 {
		return false, errors.New("prefilter returned no results")
	}
	return resp.Results[0].LikelyContains, nil
}

// Analyze describes one crop. Replies may be a single object or a list;
// the first element of a list is used.
func (c *Client) Analyze(ctx context.Context, crop []byte) (*layout.Semantics, error) {
	var raw json.RawMessage
	if err := c.postMultipart(ctx, c.baseURL+"/api/v1/analyze", "images", [][]byte{crop}, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []layout.Semantics
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode analyze reply: %w", err)
		}
		if len(list) == 0 {
			return nil, errors.New("analyze returned no results")
		}
		return &list[0], nil
	}

	var sem layout.Semantics
	if err := json.Unmarshal(trimmed, &sem); err != nil {
		return nil, fmt.Errorf("decode analyze reply: %w", err)
	}
	return &sem, nil
}

type matchRequest struct {
	NormalizedPrompt *NormalizedQuery `json:"normalized_prompt"`
	Elements         []MatchCandidate `json:"elements"`
}

// Match asks for the best candidate in batch. A reply of false or null
// means none.
func (c *Client) Match(ctx context.Context, batch []MatchCandidate, q *NormalizedQuery) (string, error) {
	var resp struct {
		MatchID json.RawMessage `json:"match_id"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/api/v1/match", matchRequest{NormalizedPrompt: q, Elements: batch}, &resp); err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(resp.MatchID, &id); err != nil {
		// false, null or absent
		return "", nil
	}
	return id, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, url, "application/json", payload, out)
}

func (c *Client) postMultipart(ctx context.Context, url, field string, files [][]byte, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i, data := range files {
		part, err := w.CreateFormFile(field, fmt.Sprintf("image%d.png", i))
		if err != nil {
			return fmt.Errorf("build multipart body: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("build multipart body: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	return c.do(ctx, url, w.FormDataContentType(), buf.Bytes(), out)
}

func (c *Client) do(ctx context.Context, url, contentType string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, url, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("perception call",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s reply: %w", url, err)
	}
	return nil
}

var (
	_ Detector   = (*Client)(nil)
	_ Normalizer = (*Client)(nil)
	_ Classifier = (*Client)(nil)
)
