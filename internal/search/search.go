package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

// SmartSearchOptions parameterize a similarity search over precomputed asset
// embeddings. Ranking comes from the vector index; results are never
// re-sorted locally.
type SmartSearchOptions struct {
	OwnerUserID uuid.UUID
	Embedding   []float32
	Persons     types.PersonFilter
}

// MetadataSearchOptions parameterize a filter-and-sort query over explicit
// asset attributes, newest capture first.
type MetadataSearchOptions struct {
	OwnerUserID uuid.UUID
	Filters     *types.AlbumSmartSearch
	Persons     types.PersonFilter
}

type SearchService interface {
	SearchSmart(ctx context.Context, page types.Pagination, opts SmartSearchOptions) ([]uuid.UUID, error)
	SearchMetadata(ctx context.Context, page types.Pagination, opts MetadataSearchOptions) ([]uuid.UUID, error)
}

type searchService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchService(db *gorm.DB, baseLog *logger.Logger) SearchService {
	return &searchService{
		db:  db,
		log: baseLog.With("service", "SearchService"),
	}
}

func (s *searchService) SearchSmart(ctx context.Context, page types.Pagination, opts SmartSearchOptions) ([]uuid.UUID, error) {
	if len(opts.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", types.ErrValidation)
	}
	limit, offset := limitOffset(page)

	sql := `
    SELECT asset.id
    FROM asset
    JOIN smart_search ON smart_search.asset_id = asset.id
    WHERE asset.owner_user_id = ?
      AND asset.deleted_at IS NULL
      AND asset.is_visible = TRUE
  `
	args := []interface{}{opts.OwnerUserID}

	if cond, condArgs := personCondition(opts.Persons); cond != "" {
		sql += " AND " + cond
		args = append(args, condArgs...)
	}

	sql += ` ORDER BY smart_search.embedding <=> ?::vector LIMIT ? OFFSET ?`
	args = append(args, VectorLiteral(opts.Embedding), limit, offset)

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("%w: smart search: %v", types.ErrInfrastructure, err)
	}
	return ids, nil
}

func (s *searchService) SearchMetadata(ctx context.Context, page types.Pagination, opts MetadataSearchOptions) ([]uuid.UUID, error) {
	limit, offset := limitOffset(page)

	q := s.db.WithContext(ctx).
		Table("asset").
		Select("asset.id").
		Where("asset.owner_user_id = ?", opts.OwnerUserID)

	for _, cond := range MetadataConditions(opts.Filters) {
		q = q.Where(cond.Expr, cond.Args...)
	}
	if cond, condArgs := personCondition(opts.Persons); cond != "" {
		q = q.Where(cond, condArgs...)
	}

	var ids []uuid.UUID
	err := q.Order("COALESCE(asset.taken_at, asset.file_created_at) DESC").
		Limit(limit).
		Offset(offset).
		Pluck("asset.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: metadata search: %v", types.ErrInfrastructure, err)
	}
	return ids, nil
}

func limitOffset(page types.Pagination) (int, int) {
	size := page.Size
	if size <= 0 {
		size = types.DefaultStructuredPageSize
	}
	p := page.Page
	if p < 1 {
		p = 1
	}
	return size, (p - 1) * size
}

// personCondition pushes the together/any tie-break down to SQL so the person
// filter applies identically under both strategies.
func personCondition(f types.PersonFilter) (string, []interface{}) {
	if f.Empty() {
		return "", nil
	}
	if f.Together {
		return `asset.id IN (
      SELECT asset_id FROM asset_face
      WHERE person_id IN ?
      GROUP BY asset_id
      HAVING COUNT(DISTINCT person_id) = ?
    )`, []interface{}{f.IDs, len(f.IDs)}
	}
	return `asset.id IN (
    SELECT asset_id FROM asset_face WHERE person_id IN ?
  )`, []interface{}{f.IDs}
}

// VectorLiteral renders an embedding as a pgvector input literal.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
