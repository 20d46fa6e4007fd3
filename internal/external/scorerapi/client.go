// Package scorerapi adapts the external text-scoring service to the
// TextScorer interface. The service is treated as a pure function over
// document text; any failure means the document is skipped, never that
// the batch fails.
package scorerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/httputil"
	"github.com/verdant/esgengine/pkg/logger"
)

// Client calls the text-scoring service over HTTP
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new scorer client
func NewClient(cfg config.ScorerConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.NewWithTimeout(log, cfg.Timeout).WithRetry(2, 0),
		logger:     log.WithField("module", "scorerapi"),
		baseURL:    cfg.BaseURL,
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	E          float64 `json:"e"`
	S          float64 `json:"s"`
	G          float64 `json:"g"`
	Confidence float64 `json:"confidence"`
}

// ScoreDocument sends the raw text to the scoring service and returns
// its (E,S,G) verdict. Out-of-range responses are rejected here so bad
// collaborator output never reaches the document store.
func (c *Client) ScoreDocument(ctx context.Context, rawText string) (contracts.DocumentScore, error) {
	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/v1/score", scoreRequest{Text: rawText})
	if err != nil {
		return contracts.DocumentScore{}, fmt.Errorf("scorer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contracts.DocumentScore{}, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var body scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return contracts.DocumentScore{}, fmt.Errorf("decode scorer response: %w", err)
	}

	if body.Confidence < 0 || body.Confidence > 1 {
		return contracts.DocumentScore{}, fmt.Errorf("scorer confidence %.4f outside [0, 1]", body.Confidence)
	}
	for name, v := range map[string]float64{"e": body.E, "s": body.S, "g": body.G} {
		if v < 0 || v > 100 {
			return contracts.DocumentScore{}, fmt.Errorf("scorer %s score %.4f outside [0, 100]", name, v)
		}
	}

	return contracts.DocumentScore{
		E:          body.E,
		S:          body.S,
		G:          body.G,
		Confidence: body.Confidence,
	}, nil
}
