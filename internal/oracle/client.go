package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/arena"
	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
)

// Client talks to the analyst oracle service over HTTP. Each role has its
// own endpoint; responses are structured JSON that the pipeline sanitizes
// on ingestion.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Analyze(ctx context.Context, q arena.AnalystQuery) (*model.AnalysisResult, error) {
	var out model.AnalysisResult
	if err := c.post(ctx, "analyst", "/v1/analyze", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SelectInstruments(ctx context.Context, q arena.SelectorQuery) ([]model.CoinVote, error) {
	var out struct {
		Votes []model.CoinVote `json:"votes"`
	}
	if err := c.post(ctx, "selector", "/v1/select", q, &out); err != nil {
		return nil, err
	}
	return out.Votes, nil
}

func (c *Client) Judge(ctx context.Context, q arena.JudgeQuery) (*model.JudgeVerdict, error) {
	var out model.JudgeVerdict
	if err := c.post(ctx, "judge", "/v1/judge", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReviewRisk(ctx context.Context, q arena.CouncilQuery) (*model.CouncilVerdict, error) {
	var out model.CouncilVerdict
	if err := c.post(ctx, "council", "/v1/review", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, role, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return apperrors.NewValidation("oracle request encode failed: " + err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTransport("oracle request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.OracleLatency.WithLabelValues(role).Observe(time.Since(start).Seconds())
	if err != nil {
		return apperrors.NewStageFailure(role, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.NewTransport("oracle response read failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.NewStageFailure(role, apperrors.NewValidation("oracle status "+resp.Status))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewValidation("oracle response decode failed: " + err.Error())
	}
	return nil
}
