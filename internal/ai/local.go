package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"assetlib/internal/apperr"
)

const (
	localSeqLen   = 128
	localEmbedDim = 384
)

type LocalConfig struct {
	ModelPath      string
	TokenizerPath  string
	RuntimePath    string
	EmbeddingModel string
}

// Local embeds text with a MiniLM sentence model through onnxruntime. It has
// no vision model, so image analysis is rejected.
type Local struct {
	mu            sync.Mutex
	model         string
	session       *ort.AdvancedSession
	tokenizer     *Tokenizer
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	closed        bool
}

func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.RuntimePath != "" {
		ort.SetSharedLibraryPath(cfg.RuntimePath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx: %w", err)
		}
	}

	shape := ort.NewShape(1, localSeqLen)
	inputIDs, err := ort.NewTensor(shape, make([]int64, localSeqLen))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	attentionMask, err := ort.NewTensor(shape, make([]int64, localSeqLen))
	if err != nil {
		return nil, fmt.Errorf("create attention tensor: %w", err)
	}
	tokenTypeIDs, err := ort.NewTensor(shape, make([]int64, localSeqLen))
	if err != nil {
		return nil, fmt.Errorf("create token type tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, localSeqLen, localEmbedDim), make([]float32, localSeqLen*localEmbedDim))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	tokenizer, err := NewTokenizer(cfg.TokenizerPath)
	if err != nil {
		session.Destroy()
		return nil, err
	}

	model := cfg.EmbeddingModel
	if model == "" {
		model = "all-MiniLM-L6-v2"
	}
	return &Local{
		model:         model,
		session:       session,
		tokenizer:     tokenizer,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		tokenTypeIDs:  tokenTypeIDs,
		output:        output,
	}, nil
}

func (l *Local) EmbeddingModel() string { return l.model }

func (l *Local) AnalyzeImage(context.Context, []byte, string) (*Analysis, error) {
	return nil, apperr.Provider("analyze image: local provider has no vision model", nil)
}

func (l *Local) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Provider("embed text", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, apperr.Provider("embed text: provider closed", nil)
	}

	inputIDs, attentionMask := l.tokenizer.Encode(strings.TrimSpace(text), localSeqLen)
	copy(l.inputIDs.GetData(), inputIDs)
	copy(l.attentionMask.GetData(), attentionMask)

	if err := l.session.Run(); err != nil {
		return nil, apperr.Provider("embed text: inference", err)
	}

	embedding := meanPooling(l.output.GetData(), attentionMask, localSeqLen, localEmbedDim)
	normalize(embedding)
	return embedding, nil
}

// TestConnection runs one inference to prove the model loads and executes.
func (l *Local) TestConnection(ctx context.Context) (bool, error) {
	if _, err := l.EmbedText(ctx, "ping"); err != nil {
		return false, err
	}
	return true, nil
}

// Close waits for any inference in flight before releasing the session.
// Calls after the first are no-ops.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.session != nil {
		l.session.Destroy()
	}
	for _, t := range []*ort.Tensor[int64]{l.inputIDs, l.attentionMask, l.tokenTypeIDs} {
		if t != nil {
			t.Destroy()
		}
	}
	if l.output != nil {
		l.output.Destroy()
	}
	if l.tokenizer != nil {
		_ = l.tokenizer.Close()
	}
}

func meanPooling(output []float32, mask []int64, seqLen, dim int) []float32 {
	embedding := make([]float32, dim)
	count := float32(0)
	for i := 0; i < seqLen; i++ {
		if mask[i] == 0 {
			continue
		}
		count++
		for j := 0; j < dim; j++ {
			embedding[j] += output[i*dim+j]
		}
	}
	if count == 0 {
		return embedding
	}
	for j := range embedding {
		embedding[j] /= count
	}
	return embedding
}

func normalize(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
