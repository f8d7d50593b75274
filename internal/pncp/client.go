package pncp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/metrics"
	"golang.org/x/time/rate"
)

// Client pages through the PNCP consulta API. Fetches are pure reads; all
// failure handling beyond the rate limiter lives with the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	limiter    *rate.Limiter
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger.With("component", "pncp_client"),
	}
}

// SetRateLimiter installs a token-bucket limiter applied before every request.
func (c *Client) SetRateLimiter(l *rate.Limiter) {
	c.limiter = l
}

// FetchPage retrieves one page for the given (endpoint, range, modality)
// request. An HTTP 204 from the source is an empty page, not an error.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	query := url.Values{}
	query.Set("dataInicial", req.DateStart)
	query.Set("dataFinal", req.DateEnd)
	query.Set("codigoModalidadeContratacao", strconv.Itoa(req.ModalityCode))
	query.Set("pagina", strconv.Itoa(req.Page))
	query.Set("tamanhoPagina", strconv.Itoa(pageSize))

	endpoint := fmt.Sprintf("%s/v1/contratacoes/%s?%s", c.baseURL, req.Endpoint, query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.FetcherRequests.WithLabelValues(string(req.Endpoint), "error").Inc()
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	metrics.FetcherLatency.WithLabelValues(string(req.Endpoint)).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNoContent {
		metrics.FetcherRequests.WithLabelValues(string(req.Endpoint), "empty").Inc()
		return &Page{Empty: true}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.FetcherRequests.WithLabelValues(string(req.Endpoint), "error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.FetcherRequests.WithLabelValues(string(req.Endpoint), "error").Inc()
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(body, 512))
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		metrics.FetcherRequests.WithLabelValues(string(req.Endpoint), "error").Inc()
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	metrics.FetcherRequests.WithLabelValues(string(req.Endpoint), "ok").Inc()
	return &Page{
		Empty:      envelope.Empty || len(envelope.Data) == 0,
		TotalPages: envelope.TotalPages,
		Records:    envelope.Data,
	}, nil
}

// wait blocks until the limiter allows one request, or ctx is done. Uses
// Reserve so that exactly one token is consumed per call.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	r := c.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.FetcherRateLimitWaits.Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
