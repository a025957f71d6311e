package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"

	"github.com/markdave123-py/flowdesk/internal/core"
)

const DefaultOpenAIEmbedModel = "text-embedding-3-small"

type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dim    int
}

// NewOpenAIEmbedder builds an embedder for the embeddings endpoint. SDK retries
// are disabled; callers decide whether a rate-limited batch is retried.
func NewOpenAIEmbedder(apiKey, model string, dim int, opts ...oaioption.RequestOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if model == "" {
		model = DefaultOpenAIEmbedModel
	}
	base := []oaioption.RequestOption{oaioption.WithAPIKey(apiKey), oaioption.WithMaxRetries(0)}
	return &OpenAIEmbedder{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
		dim:    dim,
	}, nil
}

func (o *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
	}
	// Only the text-embedding-3 family accepts a custom dimension.
	if o.dim > 0 && strings.HasPrefix(o.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(o.dim))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("openai embed: %w: %w", core.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = toFloat32(d.Embedding)
	}
	return out, nil
}

// Close is a no-op; the HTTP client holds no long-lived connection of its own.
func (o *OpenAIEmbedder) Close() error { return nil }

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
