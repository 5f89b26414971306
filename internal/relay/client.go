package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/report"
	sharederrors "github.com/khanhnv2901/gatespy/internal/shared/errors"
)

// Client calls a gateway (or any endpoint speaking the same contract) over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client for baseURL. httpClient and logger may be nil.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "relay_client")),
	}
}

// Analyze submits req and decodes the report. Empty URLs fail with ErrInvalidInput before
// any network call.
func (c *Client) Analyze(ctx context.Context, req report.AnalysisRequest) (*report.AnalysisReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	target := c.baseURL + "/analyze"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending analysis request", zap.String("gateway", target), zap.String("url", req.URL))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("analysis request failed", zap.String("gateway", target), zap.Error(err))
		return nil, &TransportError{Op: "post " + target, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}
	return interpret(resp.StatusCode, payload)
}

func encodeRequest(req report.AnalysisRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharederrors.ErrSerializationFailed, err)
	}
	return body, nil
}

// interpret maps a gateway answer onto a report or an error.
func interpret(status int, body []byte) (*report.AnalysisReport, error) {
	if status < 200 || status > 299 {
		return nil, &UpstreamError{Status: status, Message: errorMessage(body)}
	}
	r, err := report.Parse(body)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: empty report", sharederrors.ErrMalformedResponse)
	}
	return r, nil
}
