// Package embedding provides the process-wide sentence encoder used by the
// semantic matcher. The encoder is loaded lazily on first use; when the
// remote model is unreachable it degrades to a deterministic pseudo encoder
// so the service keeps answering.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/intentd/internal/profile"
)

// Encoder turns text into unit-norm vectors.
type Encoder interface {
	// Encode generates a vector for a single text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch generates vectors for multiple texts in one call.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

var (
	singletonOnce sync.Once
	singleton     Encoder
)

// Get returns the process-wide encoder, constructing it on first use.
// Construction never fails: when the configured model cannot be used the
// deterministic pseudo encoder is substituted with a warning.
func Get(profile *profile.Profile) Encoder {
	singletonOnce.Do(func() {
		singleton = newEncoder(profile)
	})
	return singleton
}

// Warmup forces encoder construction and performs one probe encoding so the
// first request does not pay the load cost.
func Warmup(ctx context.Context, profile *profile.Profile) {
	encoder := Get(profile)
	if _, err := encoder.Encode(ctx, "warmup"); err != nil {
		slog.Warn("embedding warmup probe failed", "error", err)
	}
}

func newEncoder(profile *profile.Profile) Encoder {
	dim := profile.ModelDim
	if dim <= 0 {
		dim = 384
	}
	if profile.ModelAPIKey == "" && profile.ModelPath == "" {
		slog.Warn("no embedding model configured, using pseudo encoder", "dim", dim)
		return newPseudoEncoder(dim)
	}

	clientConfig := openai.DefaultConfig(profile.ModelAPIKey)
	if profile.ModelPath != "" {
		clientConfig.BaseURL = profile.ModelPath
	}
	return &remoteEncoder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      profile.ModelType,
		dimensions: dim,
		fallback:   newPseudoEncoder(dim),
	}
}

// remoteEncoder calls an OpenAI-compatible embeddings endpoint. On transport
// failure it degrades to the pseudo encoder rather than failing the request.
type remoteEncoder struct {
	client     *openai.Client
	model      string
	dimensions int
	fallback   *pseudoEncoder

	degradedOnce sync.Once
}

func (e *remoteEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (e *remoteEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.degradedOnce.Do(func() {
			slog.Warn("embedding endpoint unreachable, degrading to pseudo encoder", "error", err)
		})
		return e.fallback.EncodeBatch(ctx, texts)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = normalize(data.Embedding)
	}
	return vectors, nil
}

func (e *remoteEncoder) Dimensions() int {
	return e.dimensions
}

// pseudoEncoder produces a deterministic hash-seeded vector for each text.
// It preserves identity (same text → same vector) but not similarity; it
// exists so the pipeline stays functional without a model.
type pseudoEncoder struct {
	dimensions int
}

func newPseudoEncoder(dimensions int) *pseudoEncoder {
	return &pseudoEncoder{dimensions: dimensions}
}

func (e *pseudoEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	if _, err := h.Write([]byte(text)); err != nil {
		return nil, fmt.Errorf("hash text: %w", err)
	}
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	return normalize(vec), nil
}

func (e *pseudoEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *pseudoEncoder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Cosine computes the cosine similarity of two vectors. Unit-norm inputs
// reduce this to a dot product, but the denominator is kept for safety.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
