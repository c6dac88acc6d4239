package machinelearning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

const maxErrorBodyBytes = 1024

// Client is the boundary to the external machine-learning service. The
// engine only needs text encoding; image encoding and face models are
// driven by the upstream pipelines, not by album evaluation.
type Client interface {
	EncodeText(ctx context.Context, text string, model CLIPConfig) ([]float32, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &client{
		log:     log.With("service", "MachineLearningClient"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type encodeTextRequest struct {
	Text      string `json:"text"`
	ModelName string `json:"modelName"`
}

type encodeTextResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *client) EncodeText(ctx context.Context, text string, model CLIPConfig) ([]float32, error) {
	body, err := json.Marshal(encodeTextRequest{
		Text:      text,
		ModelName: model.ModelName,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/encode/text", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ml encode request: %v", types.ErrInfrastructure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: ml encode status %d: %s", types.ErrInfrastructure, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out encodeTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: ml encode decode: %v", types.ErrInfrastructure, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: ml encode returned empty embedding", types.ErrInfrastructure)
	}
	if model.Dimension > 0 && len(out.Embedding) != model.Dimension {
		return nil, fmt.Errorf("%w: ml encode returned %d dims, expected %d", types.ErrInfrastructure, len(out.Embedding), model.Dimension)
	}
	return out.Embedding, nil
}
