package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

type AssetRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Asset, error)
	GetAllByPersonIDs(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, personIDs []uuid.UUID, together bool) ([]*types.Asset, error)
	GetFirstForAlbum(ctx context.Context, tx *gorm.DB, albumID uuid.UUID) (*types.Asset, error)
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{
		db:  db,
		log: baseLog.With("repo", "AssetRepo"),
	}
}

func (r *assetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Asset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var asset types.Asset
	err := transaction.WithContext(ctx).
		Preload("Faces").
		Preload("Faces.Person").
		Preload("Exif").
		Where("id = ?", id).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("asset %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetAllByPersonIDs returns the owner's visible assets depicting the given
// people. together=true keeps only assets where every listed person appears;
// false keeps assets with at least one of them.
func (r *assetRepo) GetAllByPersonIDs(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, personIDs []uuid.UUID, together bool) ([]*types.Asset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(personIDs) == 0 {
		return []*types.Asset{}, nil
	}

	var ids []uuid.UUID
	q := transaction.WithContext(ctx).
		Table("asset").
		Select("asset.id").
		Joins("JOIN asset_face ON asset_face.asset_id = asset.id").
		Where("asset.owner_user_id = ?", ownerUserID).
		Where("asset.deleted_at IS NULL").
		Where("asset.is_visible = ?", true).
		Where("asset_face.person_id IN ?", personIDs).
		Group("asset.id")
	if together {
		q = q.Having("COUNT(DISTINCT asset_face.person_id) = ?", len(personIDs))
	}
	if err := q.Pluck("asset.id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*types.Asset{}, nil
	}

	var out []*types.Asset
	err := transaction.WithContext(ctx).
		Preload("Faces").
		Preload("Faces.Person").
		Where("id IN ?", ids).
		Order("COALESCE(taken_at, file_created_at) DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetRepo) GetFirstForAlbum(ctx context.Context, tx *gorm.DB, albumID uuid.UUID) (*types.Asset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var asset types.Asset
	err := transaction.WithContext(ctx).
		Joins("JOIN albums_assets ON albums_assets.asset_id = asset.id").
		Where("albums_assets.album_id = ?", albumID).
		Order("COALESCE(asset.taken_at, asset.file_created_at) ASC").
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}
