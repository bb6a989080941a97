// Package storage persists libraries, assets, tags and embeddings in PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"assetlib/internal/apperr"
	"assetlib/internal/config"
	"assetlib/internal/models"
	"assetlib/internal/vectorindex"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// notFound maps pgx.ErrNoRows to apperr.ErrNotFound and wraps anything else.
func notFound(err error, op, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s %s", what, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mustAffect(tag pgconn.CommandTag, what, id string) error {
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("%s %s", what, id)
	}
	return nil
}

// --- Libraries ---

func (s *PostgresStore) CreateLibrary(ctx context.Context, lib *models.Library) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO libraries (id, name, root_path) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		lib.ID, lib.Name, lib.RootPath,
	).Scan(&lib.CreatedAt, &lib.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create library: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLibraries(ctx context.Context) ([]models.Library, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, root_path, created_at, updated_at FROM libraries ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	libs := []models.Library{}
	for rows.Next() {
		var l models.Library
		if err := rows.Scan(&l.ID, &l.Name, &l.RootPath, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		libs = append(libs, l)
	}
	return libs, rows.Err()
}

func (s *PostgresStore) GetLibrary(ctx context.Context, id string) (*models.Library, error) {
	l := &models.Library{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, root_path, created_at, updated_at FROM libraries WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.RootPath, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "get library", "library", id)
	}
	return l, nil
}

func (s *PostgresStore) DeleteLibrary(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM libraries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete library: %w", err)
	}
	return mustAffect(tag, "library", id)
}

// --- Assets ---

var assetFields = []string{
	"id", "library_id", "file_name", "original_name", "relative_path", "file_type", "mime_type",
	"file_size", "file_hash", "width", "height", "duration_ms", "description", "ai_description",
	"thumbnail_path", "folder_path", "created_at", "updated_at", "imported_at",
}

var assetColumns = assetColumnsAs("")

func assetColumnsAs(alias string) string {
	if alias == "" {
		return strings.Join(assetFields, ", ")
	}
	cols := make([]string, len(assetFields))
	for i, f := range assetFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner, extra ...any) (models.Asset, error) {
	var a models.Asset
	dest := []any{
		&a.ID, &a.LibraryID, &a.FileName, &a.OriginalName, &a.RelativePath, &a.FileType, &a.MimeType,
		&a.FileSize, &a.FileHash, &a.Width, &a.Height, &a.DurationMS, &a.Description, &a.AIDescription,
		&a.ThumbnailPath, &a.FolderPath, &a.CreatedAt, &a.UpdatedAt, &a.ImportedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return a, err
}

func collectAssets(rows pgx.Rows) ([]models.Asset, error) {
	defer rows.Close()
	assets := []models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) InsertAsset(ctx context.Context, a *models.Asset) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO assets (id, library_id, file_name, original_name, relative_path, file_type, mime_type,
			file_size, file_hash, width, height, duration_ms, description, ai_description,
			thumbnail_path, folder_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at, imported_at`,
		a.ID, a.LibraryID, a.FileName, a.OriginalName, a.RelativePath, a.FileType, a.MimeType,
		a.FileSize, a.FileHash, a.Width, a.Height, a.DurationMS, a.Description, a.AIDescription,
		a.ThumbnailPath, a.FolderPath,
	).Scan(&a.CreatedAt, &a.UpdatedAt, &a.ImportedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Invalid("relative path %s already exists in library", a.RelativePath)
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	a, err := scanAsset(row)
	if err != nil {
		return nil, notFound(err, "get asset", "asset", id)
	}
	return &a, nil
}

// GetAssets returns the rows that exist among ids, in no particular order.
func (s *PostgresStore) GetAssets(ctx context.Context, ids []string) ([]models.Asset, error) {
	if len(ids) == 0 {
		return []models.Asset{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get assets: %w", err)
	}
	return collectAssets(rows)
}

var sortColumns = map[string]string{
	"name": "file_name",
	"size": "file_size",
	"date": "imported_at",
}

func (s *PostgresStore) ListAssets(ctx context.Context, q models.AssetQuery) ([]models.Asset, int64, error) {
	conds := []string{"library_id = $1"}
	args := []any{q.LibraryID}
	if q.FolderPath != "" {
		args = append(args, q.FolderPath)
		conds = append(conds, fmt.Sprintf("folder_path = $%d", len(args)))
	}
	if q.FileType != "" {
		args = append(args, q.FileType)
		conds = append(conds, fmt.Sprintf("file_type = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "imported_at"
	}
	dir := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		dir = "ASC"
	}
	page, size := models.NormalizePaging(q.Page, q.PageSize)
	args = append(args, size, (page-1)*size)
	sql := fmt.Sprintf(`SELECT %s FROM assets WHERE %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		assetColumns, where, col, dir, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	assets, err := collectAssets(rows)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

func (s *PostgresStore) AssetsMissingThumbnail(ctx context.Context, limit int) ([]models.Asset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE thumbnail_path IS NULL AND file_type = 'image'
		ORDER BY imported_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("assets missing thumbnail: %w", err)
	}
	return collectAssets(rows)
}

func (s *PostgresStore) updateAssetField(ctx context.Context, column, id string, value any) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET `+column+` = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", column, err)
	}
	return mustAffect(tag, "asset", id)
}

func (s *PostgresStore) RenameAsset(ctx context.Context, id, name string) error {
	return s.updateAssetField(ctx, "file_name", id, name)
}

func (s *PostgresStore) UpdateDescription(ctx context.Context, id, description string) error {
	return s.updateAssetField(ctx, "description", id, description)
}

func (s *PostgresStore) UpdateAIDescription(ctx context.Context, id, description string) error {
	return s.updateAssetField(ctx, "ai_description", id, description)
}

func (s *PostgresStore) SetThumbnail(ctx context.Context, id, relPath string) error {
	return s.updateAssetField(ctx, "thumbnail_path", id, relPath)
}

func (s *PostgresStore) DeleteAssets(ctx context.Context, ids []string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete assets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) MoveAssets(ctx context.Context, ids []string, folder string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET folder_path = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, folder)
	if err != nil {
		return 0, fmt.Errorf("move assets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Folders ---

func (s *PostgresStore) FolderCounts(ctx context.Context, libraryID string) ([]models.FolderInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT folder_path, COUNT(*) FROM assets
		WHERE library_id = $1
		GROUP BY folder_path
		ORDER BY folder_path`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("folder counts: %w", err)
	}
	defer rows.Close()

	var out []models.FolderInfo
	for rows.Next() {
		var f models.FolderInfo
		if err := rows.Scan(&f.Path, &f.AssetCount); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RenameFolderPrefix(ctx context.Context, libraryID, oldPath, newPath string) (int64, error) {
	oldRel := strings.TrimPrefix(oldPath, "/")
	newRel := strings.TrimPrefix(newPath, "/")
	tag, err := s.pool.Exec(ctx, `
		UPDATE assets SET
			folder_path = CASE
				WHEN folder_path = $2::text OR left(folder_path, length($2::text) + 1) = $2::text || '/'
				THEN $3::text || substr(folder_path, length($2::text) + 1)
				ELSE folder_path
			END,
			relative_path = CASE
				WHEN left(relative_path, length($4::text) + 1) = $4::text || '/'
				THEN $5::text || substr(relative_path, length($4::text) + 1)
				ELSE relative_path
			END,
			updated_at = NOW()
		WHERE library_id = $1
		  AND (folder_path = $2::text
		       OR left(folder_path, length($2::text) + 1) = $2::text || '/'
		       OR left(relative_path, length($4::text) + 1) = $4::text || '/')`,
		libraryID, oldPath, newPath, oldRel, newRel)
	if err != nil {
		return 0, fmt.Errorf("rename folder: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Tags ---

const tagColumns = `id, library_id, name, color, category, is_ai, created_at`

func scanTag(row scanner, extra ...any) (models.Tag, error) {
	var t models.Tag
	dest := []any{&t.ID, &t.LibraryID, &t.Name, &t.Color, &t.Category, &t.IsAI, &t.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	return t, err
}

func (s *PostgresStore) CreateTag(ctx context.Context, t *models.Tag) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tags (id, library_id, name, color, category, is_ai) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		t.ID, t.LibraryID, t.Name, t.Color, t.Category, t.IsAI,
	).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Invalid("tag %q already exists", t.Name)
		}
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	t, err := scanTag(s.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get tag", "tag", id)
	}
	return &t, nil
}

func (s *PostgresStore) GetOrCreateTag(ctx context.Context, t *models.Tag) (*models.Tag, error) {
	// the no-op update makes RETURNING yield the existing row on conflict
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tags (id, library_id, name, color, category, is_ai)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (library_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+tagColumns,
		t.ID, t.LibraryID, t.Name, t.Color, t.Category, t.IsAI)
	got, err := scanTag(row)
	if err != nil {
		return nil, fmt.Errorf("get or create tag: %w", err)
	}
	return &got, nil
}

func (s *PostgresStore) ListTags(ctx context.Context, libraryID, category string) ([]models.TagWithCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.library_id, t.name, t.color, t.category, t.is_ai, t.created_at, COALESCE(c.cnt, 0)
		FROM tags t
		LEFT JOIN (SELECT tag_id, COUNT(*) AS cnt FROM asset_tags GROUP BY tag_id) c ON c.tag_id = t.id
		WHERE t.library_id = $1 AND ($2::text = '' OR t.category = $2::text)
		ORDER BY t.name`, libraryID, category)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.TagWithCount{}
	for rows.Next() {
		var tc models.TagWithCount
		t, err := scanTag(rows, &tc.AssetCount)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tc.Tag = t
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

func (s *PostgresStore) RenameTag(ctx context.Context, id, name string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tags SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Invalid("tag %q already exists", name)
		}
		return fmt.Errorf("rename tag: %w", err)
	}
	return mustAffect(tag, "tag", id)
}

func (s *PostgresStore) DeleteTag(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return mustAffect(tag, "tag", id)
}

// AssignTags links assets to tags. Existing links keep their confidence.
func (s *PostgresStore) AssignTags(ctx context.Context, links []models.AssetTag) error {
	if len(links) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(`
			INSERT INTO asset_tags (asset_id, tag_id, confidence) VALUES ($1, $2, $3)
			ON CONFLICT (asset_id, tag_id) DO NOTHING`, l.AssetID, l.TagID, l.Confidence)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("assign tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveTags(ctx context.Context, assetIDs, tagIDs []string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM asset_tags WHERE asset_id = ANY($1) AND tag_id = ANY($2)`, assetIDs, tagIDs)
	if err != nil {
		return fmt.Errorf("remove tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) AssetTags(ctx context.Context, assetID string) ([]models.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.library_id, t.name, t.color, t.category, t.is_ai, t.created_at
		FROM tags t
		JOIN asset_tags at ON at.tag_id = t.id
		WHERE at.asset_id = $1
		ORDER BY t.name`, assetID)
	if err != nil {
		return nil, fmt.Errorf("asset tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *PostgresStore) CopyTags(ctx context.Context, fromAssetID, toAssetID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO asset_tags (asset_id, tag_id, confidence)
		SELECT $2, tag_id, confidence FROM asset_tags WHERE asset_id = $1
		ON CONFLICT (asset_id, tag_id) DO NOTHING`, fromAssetID, toAssetID)
	if err != nil {
		return fmt.Errorf("copy tags: %w", err)
	}
	return nil
}

// --- Search ---

// SearchKeyword matches the query as a phrase against file name, description
// and AI description. Results are newest first.
func (s *PostgresStore) SearchKeyword(ctx context.Context, q models.KeywordQuery) ([]models.Asset, int64, error) {
	args := []any{q.LibraryID, q.Query}
	where := `library_id = $1 AND search_vector @@ phraseto_tsquery('simple', $2)`
	if q.FileType != "" {
		args = append(args, q.FileType)
		where += fmt.Sprintf(" AND file_type = $%d", len(args))
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count keyword matches: %w", err)
	}

	page, size := models.NormalizePaging(q.Page, q.PageSize)
	args = append(args, size, (page-1)*size)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM assets WHERE %s ORDER BY imported_at DESC, id LIMIT $%d OFFSET $%d`,
		assetColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("keyword search: %w", err)
	}
	assets, err := collectAssets(rows)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

func (s *PostgresStore) SearchByTags(ctx context.Context, libraryID string, tagIDs []string, matchAll bool) ([]models.Asset, error) {
	if len(tagIDs) == 0 {
		return []models.Asset{}, nil
	}
	var (
		rows pgx.Rows
		err  error
	)
	if matchAll {
		rows, err = s.pool.Query(ctx, `
			SELECT `+assetColumnsAs("a")+` FROM assets a
			JOIN asset_tags at ON at.asset_id = a.id
			WHERE a.library_id = $1 AND at.tag_id = ANY($2)
			GROUP BY a.id
			HAVING COUNT(DISTINCT at.tag_id) = $3
			ORDER BY a.imported_at DESC`, libraryID, tagIDs, int64(distinct(tagIDs)))
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+assetColumnsAs("a")+` FROM assets a
			WHERE a.library_id = $1
			  AND EXISTS (SELECT 1 FROM asset_tags at WHERE at.asset_id = a.id AND at.tag_id = ANY($2))
			ORDER BY a.imported_at DESC`, libraryID, tagIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("search by tags: %w", err)
	}
	return collectAssets(rows)
}

func distinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// --- Embeddings ---

func (s *PostgresStore) SaveEmbedding(ctx context.Context, e models.Embedding) error {
	var vec *pgvector.Vector
	if floats := vectorindex.Decode(e.Vector); len(floats) > 0 {
		v := pgvector.NewVector(floats)
		vec = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO embeddings (asset_id, model, vector, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id, model) DO UPDATE
		SET vector = EXCLUDED.vector, embedding = EXCLUDED.embedding, created_at = NOW()`,
		e.AssetID, e.Model, e.Vector, vec)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEmbeddings(ctx context.Context, libraryID, model string) ([]models.Embedding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.asset_id, e.model, e.vector FROM embeddings e
		JOIN assets a ON a.id = e.asset_id
		WHERE a.library_id = $1 AND e.model = $2
		ORDER BY a.imported_at, a.id`, libraryID, model)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.Embedding
	for rows.Next() {
		var e models.Embedding
		if err := rows.Scan(&e.AssetID, &e.Model, &e.Vector); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RelatedAssets ranks assets of the same library by cosine distance between
// their stored embeddings and the one of assetID.
func (s *PostgresStore) RelatedAssets(ctx context.Context, assetID, model string, k int) ([]models.ScoredAsset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assetColumnsAs("a")+`, 1 - (e.embedding <=> src.embedding) AS similarity
		FROM embeddings src
		JOIN assets sa ON sa.id = src.asset_id
		JOIN embeddings e ON e.model = src.model AND e.asset_id <> src.asset_id
		JOIN assets a ON a.id = e.asset_id AND a.library_id = sa.library_id
		WHERE src.asset_id = $1 AND src.model = $2
		  AND vector_dims(e.embedding) = vector_dims(src.embedding)
		ORDER BY e.embedding <=> src.embedding
		LIMIT $3`, assetID, model, k)
	if err != nil {
		return nil, fmt.Errorf("related assets: %w", err)
	}
	defer rows.Close()

	out := []models.ScoredAsset{}
	for rows.Next() {
		var score float64
		a, err := scanAsset(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("scan related asset: %w", err)
		}
		out = append(out, models.ScoredAsset{Asset: a, Score: score})
	}
	return out, rows.Err()
}

// --- AI config ---

// SaveAIConfig stores cfg as the only active configuration.
func (s *PostgresStore) SaveAIConfig(ctx context.Context, cfg *models.AIConfig) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE ai_config SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("deactivate ai config: %w", err)
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO ai_config (id, provider_name, api_endpoint, api_key, model_id, embedding_model, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING created_at`,
			cfg.ID, cfg.ProviderName, cfg.APIEndpoint, cfg.APIKey, cfg.ModelID, cfg.EmbeddingModel,
		).Scan(&cfg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert ai config: %w", err)
		}
		cfg.IsActive = true
		return nil
	})
}

func (s *PostgresStore) ActiveAIConfig(ctx context.Context) (*models.AIConfig, error) {
	c := &models.AIConfig{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider_name, api_endpoint, api_key, model_id, embedding_model, is_active, created_at
		FROM ai_config WHERE is_active ORDER BY created_at DESC LIMIT 1`,
	).Scan(&c.ID, &c.ProviderName, &c.APIEndpoint, &c.APIKey, &c.ModelID, &c.EmbeddingModel, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, "active ai config", "ai config", "active")
	}
	return c, nil
}
