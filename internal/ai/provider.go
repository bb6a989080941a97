// Package ai talks to the model backend used for image tagging and text
// embeddings. Exactly one Provider is active at a time, held by a Manager.
package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"assetlib/internal/apperr"
	"assetlib/internal/logger"
)

type SuggestedTag struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Analysis is what a vision model returns for one image.
type Analysis struct {
	Tags          []SuggestedTag `json:"tags"`
	Description   string         `json:"description"`
	SuggestedName string         `json:"suggested_name,omitempty"`
}

type Provider interface {
	AnalyzeImage(ctx context.Context, data []byte, mime string) (*Analysis, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	TestConnection(ctx context.Context) (bool, error)
	// EmbeddingModel names the vector space EmbedText produces.
	EmbeddingModel() string
}

// Manager holds the active provider. Swaps are atomic for readers.
type Manager struct {
	mu       sync.RWMutex
	provider Provider
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Set(p Provider) {
	m.mu.Lock()
	old := m.provider
	m.provider = p
	m.mu.Unlock()

	if c, ok := old.(interface{ Close() }); ok && old != p {
		c.Close()
	}
}

func (m *Manager) Get() (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.provider == nil {
		return nil, apperr.Provider("no AI provider configured", nil)
	}
	return m.provider, nil
}

func (m *Manager) Has() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider != nil
}

// Settings is the provider-neutral description used by New.
type Settings struct {
	Provider       string
	Endpoint       string
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration

	ModelPath     string
	TokenizerPath string
	RuntimePath   string
}

// New builds the provider named by s.Provider.
func New(s Settings, log *logger.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "openai", "openai_compatible", "":
		if strings.TrimSpace(s.Endpoint) == "" {
			return nil, apperr.Invalid("ai endpoint is required")
		}
		return NewOpenAI(OpenAIConfig{
			Endpoint:       s.Endpoint,
			APIKey:         s.APIKey,
			Model:          s.Model,
			EmbeddingModel: s.EmbeddingModel,
			Timeout:        s.Timeout,
		}, log), nil
	case "local":
		p, err := NewLocal(LocalConfig{
			ModelPath:      s.ModelPath,
			TokenizerPath:  s.TokenizerPath,
			RuntimePath:    s.RuntimePath,
			EmbeddingModel: s.EmbeddingModel,
		})
		if err != nil {
			return nil, apperr.Provider("start local provider", err)
		}
		return p, nil
	default:
		return nil, apperr.Invalid("unknown ai provider %q", s.Provider)
	}
}
