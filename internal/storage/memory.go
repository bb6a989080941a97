package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"assetlib/internal/apperr"
	"assetlib/internal/folders"
	"assetlib/internal/models"
	"assetlib/internal/vectorindex"
)

// MemoryStore keeps a library index in process memory. It backs the server
// when no database URL is configured and is used by tests.
type MemoryStore struct {
	mu         sync.Mutex
	libraries  map[string]models.Library
	assets     map[string]models.Asset
	order      []string
	tags       map[string]models.Tag
	links      map[[2]string]models.AssetTag
	embeddings map[[2]string]models.Embedding
	configs    []models.AIConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		libraries:  make(map[string]models.Library),
		assets:     make(map[string]models.Asset),
		tags:       make(map[string]models.Tag),
		links:      make(map[[2]string]models.AssetTag),
		embeddings: make(map[[2]string]models.Embedding),
	}
}

func (r *MemoryStore) Ping(context.Context) error { return nil }

func (r *MemoryStore) Close() {}

func (r *MemoryStore) CreateLibrary(_ context.Context, lib *models.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lib.CreatedAt, lib.UpdatedAt = time.Now(), time.Now()
	r.libraries[lib.ID] = *lib
	return nil
}

func (r *MemoryStore) ListLibraries(context.Context) ([]models.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Library, 0, len(r.libraries))
	for _, l := range r.libraries {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryStore) GetLibrary(_ context.Context, id string) (*models.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.libraries[id]
	if !ok {
		return nil, apperr.NotFound("library %s", id)
	}
	return &l, nil
}

func (r *MemoryStore) DeleteLibrary(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.libraries[id]; !ok {
		return apperr.NotFound("library %s", id)
	}
	delete(r.libraries, id)
	for assetID, a := range r.assets {
		if a.LibraryID == id {
			r.dropAsset(assetID)
		}
	}
	for tagID, t := range r.tags {
		if t.LibraryID == id {
			delete(r.tags, tagID)
		}
	}
	return nil
}

func (r *MemoryStore) InsertAsset(_ context.Context, a *models.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.assets {
		if other.LibraryID == a.LibraryID && other.RelativePath == a.RelativePath {
			return apperr.Invalid("duplicate path %s", a.RelativePath)
		}
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt, a.ImportedAt = now, now, now
	r.assets[a.ID] = *a
	r.order = append(r.order, a.ID)
	return nil
}

func (r *MemoryStore) GetAsset(_ context.Context, id string) (*models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, apperr.NotFound("asset %s", id)
	}
	return &a, nil
}

func (r *MemoryStore) GetAssets(_ context.Context, ids []string) ([]models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Asset
	for _, id := range ids {
		if a, ok := r.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// ordered returns the live assets in insertion order.
func (r *MemoryStore) ordered() []models.Asset {
	var out []models.Asset
	for _, id := range r.order {
		if a, ok := r.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (r *MemoryStore) ListAssets(_ context.Context, q models.AssetQuery) ([]models.Asset, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Asset
	for _, a := range r.ordered() {
		if a.LibraryID != q.LibraryID ||
			(q.FolderPath != "" && a.FolderPath != q.FolderPath) ||
			(q.FileType != "" && a.FileType != q.FileType) {
			continue
		}
		out = append(out, a)
	}
	sortAssets(out, q.SortBy, q.SortOrder)
	page, total := paginate(out, q.Page, q.PageSize)
	return page, total, nil
}

// sortAssets orders like the SQL store: imported date unless by names
// another column, descending unless order is "asc".
func sortAssets(assets []models.Asset, by, order string) {
	less := func(a, b models.Asset) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch by {
	case "name":
		less = func(a, b models.Asset) bool { return a.FileName < b.FileName }
	case "size":
		less = func(a, b models.Asset) bool { return a.FileSize < b.FileSize }
	}
	desc := !strings.EqualFold(order, "asc")
	sort.SliceStable(assets, func(i, j int) bool {
		if desc {
			return less(assets[j], assets[i])
		}
		return less(assets[i], assets[j])
	})
}

func paginate(assets []models.Asset, page, pageSize int) ([]models.Asset, int64) {
	page, pageSize = models.NormalizePaging(page, pageSize)
	total := int64(len(assets))
	start := min((page-1)*pageSize, len(assets))
	end := min(start+pageSize, len(assets))
	if start == end {
		return []models.Asset{}, total
	}
	return assets[start:end], total
}

func (r *MemoryStore) AssetsMissingThumbnail(_ context.Context, limit int) ([]models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Asset
	for _, a := range r.ordered() {
		if a.FileType == models.FileTypeImage && a.ThumbnailPath == nil && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryStore) update(id string, fn func(a *models.Asset)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return apperr.NotFound("asset %s", id)
	}
	fn(&a)
	r.assets[id] = a
	return nil
}

func (r *MemoryStore) RenameAsset(_ context.Context, id, name string) error {
	return r.update(id, func(a *models.Asset) { a.FileName = name })
}

func (r *MemoryStore) UpdateDescription(_ context.Context, id, d string) error {
	return r.update(id, func(a *models.Asset) { a.Description = d })
}

func (r *MemoryStore) UpdateAIDescription(_ context.Context, id, d string) error {
	return r.update(id, func(a *models.Asset) { a.AIDescription = d })
}

func (r *MemoryStore) SetThumbnail(_ context.Context, id, rel string) error {
	return r.update(id, func(a *models.Asset) { a.ThumbnailPath = &rel })
}

func (r *MemoryStore) DeleteAssets(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.assets[id]; ok {
			r.dropAsset(id)
			n++
		}
	}
	return n, nil
}

// dropAsset deletes an asset with its tag links and embeddings. r.mu must be held.
func (r *MemoryStore) dropAsset(id string) {
	delete(r.assets, id)
	for k := range r.links {
		if k[0] == id {
			delete(r.links, k)
		}
	}
	for k := range r.embeddings {
		if k[0] == id {
			delete(r.embeddings, k)
		}
	}
}

func (r *MemoryStore) MoveAssets(_ context.Context, ids []string, folder string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if a, ok := r.assets[id]; ok {
			a.FolderPath = folder
			r.assets[id] = a
			n++
		}
	}
	return n, nil
}

func (r *MemoryStore) FolderCounts(_ context.Context, libraryID string) ([]models.FolderInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, a := range r.assets {
		if a.LibraryID == libraryID {
			counts[a.FolderPath]++
		}
	}
	out := make([]models.FolderInfo, 0, len(counts))
	for p, n := range counts {
		out = append(out, models.FolderInfo{Path: p, Name: folders.Name(p), AssetCount: n})
	}
	return out, nil
}

func (r *MemoryStore) RenameFolderPrefix(_ context.Context, libraryID, oldPath, newPath string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldRel, newRel := strings.TrimPrefix(oldPath, "/")+"/", strings.TrimPrefix(newPath, "/")+"/"
	var n int64
	for id, a := range r.assets {
		if a.LibraryID != libraryID {
			continue
		}
		folder, moved := folders.Rebase(a.FolderPath, oldPath, newPath)
		relMoved := strings.HasPrefix(a.RelativePath, oldRel)
		if !moved && !relMoved {
			continue
		}
		a.FolderPath = folder
		if relMoved {
			a.RelativePath = newRel + strings.TrimPrefix(a.RelativePath, oldRel)
		}
		r.assets[id] = a
		n++
	}
	return n, nil
}

func (r *MemoryStore) CreateTag(_ context.Context, t *models.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.tags {
		if other.LibraryID == t.LibraryID && other.Name == t.Name {
			return apperr.Invalid("tag %q already exists", t.Name)
		}
	}
	r.tags[t.ID] = *t
	return nil
}

func (r *MemoryStore) GetTag(_ context.Context, id string) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok {
		return nil, apperr.NotFound("tag %s", id)
	}
	return &t, nil
}

func (r *MemoryStore) GetOrCreateTag(_ context.Context, t *models.Tag) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.tags {
		if other.LibraryID == t.LibraryID && other.Name == t.Name {
			return &other, nil
		}
	}
	r.tags[t.ID] = *t
	out := *t
	return &out, nil
}

func (r *MemoryStore) ListTags(_ context.Context, libraryID, category string) ([]models.TagWithCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TagWithCount
	for _, t := range r.tags {
		if t.LibraryID != libraryID || (category != "" && t.Category != category) {
			continue
		}
		var n int64
		for k := range r.links {
			if k[1] == t.ID {
				n++
			}
		}
		out = append(out, models.TagWithCount{Tag: t, AssetCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryStore) RenameTag(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok {
		return apperr.NotFound("tag %s", id)
	}
	t.Name = name
	r.tags[id] = t
	return nil
}

func (r *MemoryStore) DeleteTag(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tags[id]; !ok {
		return apperr.NotFound("tag %s", id)
	}
	delete(r.tags, id)
	for k := range r.links {
		if k[1] == id {
			delete(r.links, k)
		}
	}
	return nil
}

func (r *MemoryStore) AssignTags(_ context.Context, links []models.AssetTag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range links {
		k := [2]string{l.AssetID, l.TagID}
		if _, ok := r.links[k]; !ok {
			r.links[k] = l
		}
	}
	return nil
}

func (r *MemoryStore) RemoveTags(_ context.Context, assetIDs, tagIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range assetIDs {
		for _, t := range tagIDs {
			delete(r.links, [2]string{a, t})
		}
	}
	return nil
}

func (r *MemoryStore) AssetTags(_ context.Context, assetID string) ([]models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Tag{}
	for k := range r.links {
		if k[0] == assetID {
			out = append(out, r.tags[k[1]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryStore) CopyTags(_ context.Context, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, l := range r.links {
		if k[0] == from {
			r.links[[2]string{to, k[1]}] = models.AssetTag{AssetID: to, TagID: k[1], Confidence: l.Confidence}
		}
	}
	return nil
}

func (r *MemoryStore) SearchKeyword(_ context.Context, q models.KeywordQuery) ([]models.Asset, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Substring match stands in for the phrase query of the SQL store.
	var out []models.Asset
	needle := strings.ToLower(q.Query)
	for _, a := range r.ordered() {
		hay := strings.ToLower(a.FileName + " " + a.Description + " " + a.AIDescription)
		if a.LibraryID == q.LibraryID && strings.Contains(hay, needle) &&
			(q.FileType == "" || a.FileType == q.FileType) {
			out = append(out, a)
		}
	}
	page, total := paginate(out, q.Page, q.PageSize)
	return page, total, nil
}

func (r *MemoryStore) SearchByTags(_ context.Context, libraryID string, tagIDs []string, matchAll bool) ([]models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Asset{}
	for _, a := range r.ordered() {
		if a.LibraryID != libraryID {
			continue
		}
		hits := 0
		for _, t := range tagIDs {
			if _, ok := r.links[[2]string{a.ID, t}]; ok {
				hits++
			}
		}
		if (matchAll && hits == len(tagIDs)) || (!matchAll && hits > 0) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryStore) SaveEmbedding(_ context.Context, e models.Embedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[[2]string{e.AssetID, e.Model}] = e
	return nil
}

func (r *MemoryStore) ListEmbeddings(_ context.Context, libraryID, model string) ([]models.Embedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Embedding
	for _, id := range r.order {
		a, ok := r.assets[id]
		if !ok || a.LibraryID != libraryID {
			continue
		}
		if e, ok := r.embeddings[[2]string{id, model}]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryStore) RelatedAssets(_ context.Context, assetID, model string, k int) ([]models.ScoredAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	self, ok := r.embeddings[[2]string{assetID, model}]
	if !ok {
		return []models.ScoredAsset{}, nil
	}
	libraryID := r.assets[assetID].LibraryID
	var cands []vectorindex.Candidate
	for key, e := range r.embeddings {
		if key[1] != model || key[0] == assetID {
			continue
		}
		if a, ok := r.assets[key[0]]; !ok || a.LibraryID != libraryID {
			continue
		}
		cands = append(cands, vectorindex.Candidate{ID: key[0], Vector: vectorindex.Decode(e.Vector)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })
	var out []models.ScoredAsset
	for _, m := range vectorindex.Rank(vectorindex.Decode(self.Vector), cands, k) {
		out = append(out, models.ScoredAsset{Asset: r.assets[m.ID], Score: m.Score})
	}
	return out, nil
}

func (r *MemoryStore) SaveAIConfig(_ context.Context, cfg *models.AIConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.configs {
		r.configs[i].IsActive = false
	}
	cfg.IsActive = true
	r.configs = append(r.configs, *cfg)
	return nil
}

func (r *MemoryStore) ActiveAIConfig(context.Context) (*models.AIConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.IsActive {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("no active ai config")
}
