// Package relay forwards analysis requests to the scanner and relays its answers.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/gatespy/internal/report"
	consts "github.com/khanhnv2901/gatespy/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/gatespy/internal/shared/errors"
)

// Config configures a Gateway. The zero value talks to DefaultScannerURL.
type Config struct {
	ScannerURL   string
	Timeout      time.Duration
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Gateway relays analysis requests to the scanner. It holds no per-request state, so one
// Gateway serves any number of concurrent calls.
type Gateway struct {
	scannerURL   string
	timeout      time.Duration
	maxBodyBytes int64
	client       *http.Client
	logger       *zap.Logger
}

// Outcome is what the gateway answers for one forwarded request.
type Outcome struct {
	Status int
	Body   []byte
	// Passthrough is set when Body holds the scanner's success body untouched.
	Passthrough bool
	// Err is the transport failure behind a 500 the gateway produced itself.
	Err error
}

func NewGateway(cfg Config) *Gateway {
	scannerURL := strings.TrimRight(strings.TrimSpace(cfg.ScannerURL), "/")
	if scannerURL == "" {
		scannerURL = consts.DefaultScannerURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultScannerTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = consts.MaxRequestBodyBytes
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		scannerURL:   scannerURL,
		timeout:      timeout,
		maxBodyBytes: maxBody,
		client:       client,
		logger:       logger.With(zap.String("component", "relay")),
	}
}

// ScannerURL returns the resolved scanner base address.
func (g *Gateway) ScannerURL() string {
	return g.scannerURL
}

// Forward sends body verbatim to the scanner's analyze endpoint. It makes exactly one
// attempt.
func (g *Gateway) Forward(ctx context.Context, body []byte) Outcome {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	target := g.scannerURL + "/analyze"
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return g.transportFailure(target, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return g.transportFailure(target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return g.transportFailure(target, fmt.Errorf("read scanner response: %w", err))
	}

	g.logger.Info("scanner_response",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{Status: resp.StatusCode, Body: encodeErrorBody(string(payload))}
	}
	return Outcome{Status: http.StatusOK, Body: payload, Passthrough: true}
}

func (g *Gateway) transportFailure(target string, err error) Outcome {
	g.logger.Warn("scanner_unreachable", zap.String("url", target), zap.Error(err))
	return Outcome{Status: http.StatusInternalServerError, Body: encodeErrorBody(err.Error()), Err: err}
}

// ServeHTTP implements the caller-facing analyze endpoint.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeOutcome(w, Outcome{Status: http.StatusMethodNotAllowed, Body: encodeErrorBody("method not allowed")})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBodyBytes))
	if err != nil {
		msg := err.Error()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = sharederrors.ErrRequestTooLarge.Error()
		}
		writeOutcome(w, Outcome{Status: http.StatusBadRequest, Body: encodeErrorBody(msg)})
		return
	}

	writeOutcome(w, g.Forward(r.Context(), body))
}

func writeOutcome(w http.ResponseWriter, o Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(o.Status)
	_, _ = w.Write(o.Body)
}

// Ping checks that the scanner answers its health endpoint.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.scannerURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sharederrors.ErrScannerUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health status %d", sharederrors.ErrScannerUnavailable, resp.StatusCode)
	}
	return nil
}

// Analyzer returns an in-process caller that goes through Forward without a loopback
// HTTP hop.
func (g *Gateway) Analyzer() *LocalAnalyzer {
	return &LocalAnalyzer{gateway: g}
}

// LocalAnalyzer interprets gateway outcomes exactly like Client interprets HTTP answers.
type LocalAnalyzer struct {
	gateway *Gateway
}

func (a *LocalAnalyzer) Analyze(ctx context.Context, req report.AnalysisRequest) (*report.AnalysisReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	out := a.gateway.Forward(ctx, body)
	if out.Err != nil {
		return nil, &TransportError{Op: "analyze", Err: out.Err}
	}
	return interpret(out.Status, out.Body)
}
