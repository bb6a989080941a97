package library

import (
	"context"
	"strings"
	"time"

	"assetlib/internal/models"
	"assetlib/internal/observability"
	"assetlib/internal/vectorindex"
)

const (
	defaultSemanticK = 20
	defaultRelatedK  = 10
)

// SearchKeyword runs a phrase search over names and descriptions. A blank
// query, or any tag filter, yields an empty page.
func (s *Service) SearchKeyword(ctx context.Context, q models.KeywordQuery) (*models.AssetPage, error) {
	q.Page, q.PageSize = models.NormalizePaging(q.Page, q.PageSize)
	page := &models.AssetPage{Assets: []models.Asset{}, Page: q.Page, PageSize: q.PageSize}
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" || len(q.TagIDs) > 0 {
		return page, nil
	}

	assets, total, err := s.repo.SearchKeyword(ctx, q)
	if err != nil {
		return nil, err
	}
	page.Assets, page.Total = assets, total
	return page, nil
}

// SearchByTags returns assets carrying all (matchAll) or any of tagIDs.
func (s *Service) SearchByTags(ctx context.Context, libraryID string, tagIDs []string, matchAll bool) ([]models.Asset, error) {
	if len(tagIDs) == 0 {
		return []models.Asset{}, nil
	}
	return s.repo.SearchByTags(ctx, libraryID, tagIDs, matchAll)
}

// SemanticSearch embeds query with the active provider and ranks every
// embedding of the provider's model in the library by cosine similarity.
func (s *Service) SemanticSearch(ctx context.Context, libraryID, query string, k int) ([]models.ScoredAsset, error) {
	start := time.Now()
	defer func() { observability.SemanticSearchDuration.Observe(time.Since(start).Seconds()) }()

	if k <= 0 {
		k = defaultSemanticK
	}
	if strings.TrimSpace(query) == "" {
		return []models.ScoredAsset{}, nil
	}
	provider, err := s.ai.Get()
	if err != nil {
		return nil, err
	}
	vec, err := provider.EmbedText(ctx, query)
	if err != nil {
		observability.ProviderErrors.WithLabelValues("embed").Inc()
		return nil, err
	}

	embs, err := s.repo.ListEmbeddings(ctx, libraryID, provider.EmbeddingModel())
	if err != nil {
		return nil, err
	}
	candidates := make([]vectorindex.Candidate, len(embs))
	for i, e := range embs {
		candidates[i] = vectorindex.Candidate{ID: e.AssetID, Vector: vectorindex.Decode(e.Vector)}
	}
	matches := vectorindex.Rank(vec, candidates, k)
	if len(matches) == 0 {
		return []models.ScoredAsset{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	assets, err := s.repo.GetAssets(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	out := make([]models.ScoredAsset, 0, len(matches))
	for _, m := range matches {
		if a, ok := byID[m.ID]; ok {
			out = append(out, models.ScoredAsset{Asset: a, Score: m.Score})
		}
	}
	return out, nil
}

// RelatedAssets finds assets whose stored embedding is closest to the given
// asset's, in the active provider's vector space.
func (s *Service) RelatedAssets(ctx context.Context, assetID string, k int) ([]models.ScoredAsset, error) {
	if k <= 0 {
		k = defaultRelatedK
	}
	provider, err := s.ai.Get()
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.repo.RelatedAssets(ctx, assetID, provider.EmbeddingModel(), k)
}
