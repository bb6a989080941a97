package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"assetlib/internal/ai"
	"assetlib/internal/apperr"
	"assetlib/internal/models"
	"assetlib/internal/observability"
	"assetlib/internal/vectorindex"
)

// TagResult is what TagAsset stored for an asset.
type TagResult struct {
	Tags          []models.Tag `json:"tags"`
	Description   string       `json:"description"`
	SuggestedName string       `json:"suggested_name,omitempty"`
}

// TagAsset asks the active provider to describe an image, stores the
// description and the suggested tags, and embeds the description for
// semantic search. An embedding failure is logged and does not fail the call.
func (s *Service) TagAsset(ctx context.Context, assetID string) (*TagResult, error) {
	a, lib, err := s.assetWithLibrary(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if a.FileType != models.FileTypeImage {
		return nil, apperr.Invalid("asset %s is %s, only images can be tagged", a.ID, a.FileType)
	}
	provider, err := s.ai.Get()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath(lib, a.RelativePath))
	if err != nil {
		return nil, apperr.IO("read "+a.RelativePath, err)
	}
	analysis, err := provider.AnalyzeImage(ctx, data, a.MimeType)
	if err != nil {
		observability.ProviderErrors.WithLabelValues("analyze").Inc()
		return nil, err
	}

	if err := s.repo.UpdateAIDescription(ctx, a.ID, analysis.Description); err != nil {
		return nil, err
	}

	tags, links, err := s.resolveSuggestedTags(ctx, a, analysis.Tags)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		if err := s.repo.AssignTags(ctx, links); err != nil {
			return nil, err
		}
	}

	if err := s.embedDescription(ctx, provider, a.ID, analysis.Description); err != nil {
		return nil, err
	}

	s.log.Info("asset tagged", "id", a.ID, "tags", len(tags))
	return &TagResult{Tags: tags, Description: analysis.Description, SuggestedName: analysis.SuggestedName}, nil
}

func (s *Service) resolveSuggestedTags(ctx context.Context, a *models.Asset, suggested []ai.SuggestedTag) ([]models.Tag, []models.AssetTag, error) {
	tags := make([]models.Tag, 0, len(suggested))
	links := make([]models.AssetTag, 0, len(suggested))
	seen := make(map[string]bool, len(suggested))
	for _, st := range suggested {
		name := strings.ToLower(strings.TrimSpace(st.Name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		t, err := s.repo.GetOrCreateTag(ctx, &models.Tag{
			ID:        uuid.NewString(),
			LibraryID: a.LibraryID,
			Name:      name,
			Color:     DefaultTagColor,
			Category:  st.Category,
			IsAI:      true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("tag %q: %w", name, err)
		}
		tags = append(tags, *t)
		links = append(links, models.AssetTag{AssetID: a.ID, TagID: t.ID, Confidence: clamp01(st.Confidence)})
	}
	return tags, links, nil
}

// embedDescription stores the embedding of text. Provider failures are
// swallowed; storage failures are returned.
func (s *Service) embedDescription(ctx context.Context, provider ai.Provider, assetID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := provider.EmbedText(ctx, text)
	if err != nil {
		observability.ProviderErrors.WithLabelValues("embed").Inc()
		s.log.Warn("embedding skipped", "asset_id", assetID, "error", err)
		return nil
	}
	return s.repo.SaveEmbedding(ctx, models.Embedding{
		AssetID: assetID,
		Model:   provider.EmbeddingModel(),
		Vector:  vectorindex.Encode(vec),
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// AIConfigInput is a provider configuration as submitted by a client.
type AIConfigInput struct {
	ProviderName   string `json:"provider_name"`
	APIEndpoint    string `json:"api_endpoint"`
	APIKey         string `json:"api_key"`
	ModelID        string `json:"model_id"`
	EmbeddingModel string `json:"embedding_model"`
}

func (in AIConfigInput) toModel() models.AIConfig {
	return models.AIConfig{
		ID:             uuid.NewString(),
		ProviderName:   strings.TrimSpace(in.ProviderName),
		APIEndpoint:    strings.TrimSpace(in.APIEndpoint),
		APIKey:         in.APIKey,
		ModelID:        in.ModelID,
		EmbeddingModel: in.EmbeddingModel,
		IsActive:       true,
	}
}

func (s *Service) buildProvider(cfg models.AIConfig) (ai.Provider, error) {
	if s.newProvider == nil {
		return nil, apperr.Provider("no provider factory configured", nil)
	}
	return s.newProvider(cfg)
}

// SaveAIConfig validates the configuration by building its provider, persists
// it as the only active one and swaps the running provider.
func (s *Service) SaveAIConfig(ctx context.Context, in AIConfigInput) (*models.AIConfig, error) {
	cfg := in.toModel()
	if cfg.ProviderName == "" {
		return nil, apperr.Invalid("provider name is required")
	}
	p, err := s.buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveAIConfig(ctx, &cfg); err != nil {
		closeProvider(p)
		return nil, err
	}
	s.ai.Set(p)
	s.log.Info("ai provider configured", "provider", cfg.ProviderName, "model", cfg.ModelID)
	return &cfg, nil
}

func (s *Service) AIConfig(ctx context.Context) (*models.AIConfig, error) {
	return s.repo.ActiveAIConfig(ctx)
}

// TestConnection probes a configuration without saving or activating it.
func (s *Service) TestConnection(ctx context.Context, in AIConfigInput) (bool, error) {
	p, err := s.buildProvider(in.toModel())
	if err != nil {
		return false, err
	}
	defer closeProvider(p)
	return p.TestConnection(ctx)
}

// LoadAIConfig activates the persisted provider, if any. It is meant for startup.
func (s *Service) LoadAIConfig(ctx context.Context) error {
	cfg, err := s.repo.ActiveAIConfig(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p, err := s.buildProvider(*cfg)
	if err != nil {
		return fmt.Errorf("load ai config %s: %w", cfg.ID, err)
	}
	s.ai.Set(p)
	s.log.Info("ai provider restored", "provider", cfg.ProviderName)
	return nil
}

func closeProvider(p ai.Provider) {
	if c, ok := p.(interface{ Close() }); ok {
		c.Close()
	}
}
