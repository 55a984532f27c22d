// internal/generator/client.go
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/utils"
)

// User-facing failure messages.
const (
	MsgMissingChapterURL = "Please enter a chapter URL"
	MsgMissingAPIURL     = "Please enter your generation API URL"
	MsgTimeout           = "Request timed out. Try reducing iterations or check your API."
	MsgConnection        = "Connection failed: Check if your API URL is correct and API is running"
	apiErrorPrefix       = "API Error: "
)

const maxErrorBody = 4096

// Result is the generation API response. Missing fields stay empty and are
// rendered with placeholders downstream.
type Result struct {
	Title     string `json:"title"`
	Original  string `json:"original"`
	AIVersion string `json:"ai_version"`
}

// Client calls the chapter generation API.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        *utils.Logger
}

// NewClient returns a client for baseURL. Each call is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, log *utils.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        log.With("component", "generator"),
	}
}

// Generate asks the API to scrape and rewrite the chapter at chapterURL.
// apiURL overrides the configured base URL when non-empty.
func (c *Client) Generate(ctx context.Context, chapterURL, apiURL string) (*Result, error) {
	chapterURL = strings.TrimSpace(chapterURL)
	if chapterURL == "" {
		return nil, apperrors.NewValidationError(MsgMissingChapterURL, nil)
	}
	base := c.baseURL
	if override := strings.TrimSpace(apiURL); override != "" {
		base = strings.TrimRight(override, "/")
	}
	if base == "" {
		return nil, apperrors.NewValidationError(MsgMissingAPIURL, nil)
	}

	body, err := json.Marshal(map[string]string{"url": chapterURL})
	if err != nil {
		return nil, apperrors.NewProcessingError("encode generate request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewValidationError(MsgMissingAPIURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ngrok-skip-browser-warning", "true")

	start := time.Now()
	c.log.Info("generate request", "endpoint", base+"/generate", "chapter_url", chapterURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classify(ctx, err)
		c.log.Warn("generate failed", "error", err, "type", apperrors.TypeOf(classified), "elapsed", time.Since(start))
		return nil, classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := fmt.Sprintf("%sHTTP %d: %s", apiErrorPrefix, resp.StatusCode, strings.TrimSpace(string(raw)))
		c.log.Warn("generate rejected", "status", resp.StatusCode, "elapsed", time.Since(start))
		return nil, apperrors.NewUpstreamError(msg, nil)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError(MsgTimeout, err)
		}
		return nil, apperrors.NewUpstreamError(apiErrorPrefix+"invalid response body", err)
	}
	c.log.Info("generate complete", "title", result.Title, "elapsed", time.Since(start))
	return &result, nil
}

// classify maps a transport error to timeout, connection, or API error.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(MsgTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError(MsgTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.NewProcessingError("generation cancelled", err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return apperrors.NewConnectionError(MsgConnection, err)
	}
	return apperrors.NewUpstreamError(apiErrorPrefix+err.Error(), err)
}
