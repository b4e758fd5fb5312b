package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/lineup-engine/types"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	scorePath          = "/v1/score"
	scoreBatchPath     = "/v1/score/batch"
)

// HTTPModel calls a remote scoring service over JSON/HTTP. A circuit
// breaker trips after consecutive failures so a dead collaborator fails
// fast instead of stalling every generation on timeouts.
type HTTPModel struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
	breaker    *gobreaker.CircuitBreaker
}

// HTTPOption customizes an HTTPModel.
type HTTPOption func(*HTTPModel)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(m *HTTPModel) {
		m.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying client entirely.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(m *HTTPModel) {
		m.httpClient = c
	}
}

// NewHTTPModel creates a scoring client for the service at baseURL.
func NewHTTPModel(baseURL string, logger *logrus.Logger, opts ...HTTPOption) *HTTPModel {
	m := &HTTPModel{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		logger:     logger,
	}

	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "scoring-model",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Info("Scoring model circuit breaker state changed")
		},
	})

	for _, opt := range opts {
		opt(m)
	}
	return m
}

type scoreRequest struct {
	Features types.LineupFeatures `json:"features"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

type scoreBatchRequest struct {
	Features []types.LineupFeatures `json:"features"`
}

type scoreBatchResponse struct {
	Scores []float64 `json:"scores"`
}

// ScoreBase requests a base score for one lineup.
func (m *HTTPModel) ScoreBase(ctx context.Context, features types.LineupFeatures) (float64, error) {
	var resp scoreResponse
	if err := m.post(ctx, scorePath, scoreRequest{Features: features}, &resp); err != nil {
		return 0, err
	}
	return validateScore(resp.Score)
}

// ScoreBatch requests base scores for a whole generation in one call.
// Returned scores are positionally aligned with the input.
func (m *HTTPModel) ScoreBatch(ctx context.Context, features []types.LineupFeatures) ([]float64, error) {
	var resp scoreBatchResponse
	if err := m.post(ctx, scoreBatchPath, scoreBatchRequest{Features: features}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(features) {
		return nil, fmt.Errorf("batch score count mismatch: sent %d features, got %d scores",
			len(features), len(resp.Scores))
	}
	out := make([]float64, len(resp.Scores))
	for i, s := range resp.Scores {
		score, err := validateScore(s)
		if err != nil {
			return nil, fmt.Errorf("batch index %d: %w", i, err)
		}
		out[i] = score
	}
	return out, nil
}

func (m *HTTPModel) post(ctx context.Context, path string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	_, err = m.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("scoring request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			m.logger.WithFields(logrus.Fields{
				"status": resp.StatusCode,
				"path":   path,
				"body":   string(raw),
			}).Warn("Scoring model returned non-200")
			return nil, fmt.Errorf("scoring model returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("failed to decode scoring response: %w", err)
		}
		return nil, nil
	})
	return err
}
