package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

type AlbumRepo interface {
	Create(ctx context.Context, tx *gorm.DB, album *types.Album) (*types.Album, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, withAssets bool) (*types.Album, error)
	GetOwned(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Album, error)
	GetSmartAlbumsOwnedBy(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Album, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	GetAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID) ([]uuid.UUID, error)
	HasAsset(ctx context.Context, tx *gorm.DB, albumID, assetID uuid.UUID) (bool, error)
	AddAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, assetIDs []uuid.UUID) error
	RemoveAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, assetIDs []uuid.UUID) error
	SetPeople(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, personIDs []uuid.UUID, together bool) error
}

type albumRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlbumRepo(db *gorm.DB, baseLog *logger.Logger) AlbumRepo {
	return &albumRepo{
		db:  db,
		log: baseLog.With("repo", "AlbumRepo"),
	}
}

func (r *albumRepo) Create(ctx context.Context, tx *gorm.DB, album *types.Album) (*types.Album, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if album == nil {
		return nil, fmt.Errorf("nil album")
	}
	if err := transaction.WithContext(ctx).Create(album).Error; err != nil {
		return nil, err
	}
	return album, nil
}

func (r *albumRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, withAssets bool) (*types.Album, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Preload("People").
		Preload("SmartSearch").
		Preload("SmartSearch.People")
	if withAssets {
		q = q.Preload("Assets")
	}
	var album types.Album
	err := q.Where("id = ?", id).First(&album).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("album %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &album, nil
}

func (r *albumRepo) GetOwned(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Album, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Album
	err := transaction.WithContext(ctx).
		Preload("People").
		Preload("SmartSearch").
		Preload("SmartSearch.People").
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSmartAlbumsOwnedBy returns the owner's albums that carry either a search
// specification or a person filter; plain curated albums are excluded.
func (r *albumRepo) GetSmartAlbumsOwnedBy(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Album, error) {
	albums, err := r.GetOwned(ctx, tx, ownerUserID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Album, 0, len(albums))
	for _, album := range albums {
		if album.IsSmart() {
			out = append(out, album)
		}
	}
	return out, nil
}

func (r *albumRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Album{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *albumRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("album_id = ?", id).Delete(&types.AlbumSmartSearch{}).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", id).Delete(&types.Album{}).Error
	})
}

func (r *albumRepo) GetAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Table("albums_assets").
		Where("album_id = ?", albumID).
		Pluck("asset_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *albumRepo) HasAsset(ctx context.Context, tx *gorm.DB, albumID, assetID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Table("albums_assets").
		Where("album_id = ? AND asset_id = ?", albumID, assetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddAssetIDs inserts membership rows in one transaction. ON CONFLICT DO
// NOTHING makes the call idempotent; re-adding an existing asset is a no-op
// and never clobbers rows added manually.
func (r *albumRepo) AddAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, assetIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(assetIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		for _, assetID := range assetIDs {
			err := txx.Exec(`
        INSERT INTO albums_assets (album_id, asset_id)
        VALUES (?, ?)
        ON CONFLICT DO NOTHING
      `, albumID, assetID).Error
			if err != nil {
				return err
			}
		}
		return txx.Model(&types.Album{}).
			Where("id = ?", albumID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *albumRepo) RemoveAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, assetIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(assetIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Exec(`DELETE FROM albums_assets WHERE album_id = ? AND asset_id IN ?`, albumID, assetIDs).Error
}

func (r *albumRepo) SetPeople(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, personIDs []uuid.UUID, together bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Exec(`DELETE FROM albums_people WHERE album_id = ?`, albumID).Error; err != nil {
			return err
		}
		for _, personID := range personIDs {
			err := txx.Exec(`
        INSERT INTO albums_people (album_id, person_id)
        VALUES (?, ?)
        ON CONFLICT DO NOTHING
      `, albumID, personID).Error
			if err != nil {
				return err
			}
		}
		return txx.Model(&types.Album{}).
			Where("id = ?", albumID).
			Updates(map[string]interface{}{
				"people_together": together,
				"updated_at":      time.Now(),
			}).Error
	})
}
