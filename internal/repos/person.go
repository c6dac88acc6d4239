package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

type PersonRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, ids []uuid.UUID) ([]*types.Person, error)
}

type personRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPersonRepo(db *gorm.DB, baseLog *logger.Logger) PersonRepo {
	return &personRepo{
		db:  db,
		log: baseLog.With("repo", "PersonRepo"),
	}
}

func (r *personRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, ids []uuid.UUID) ([]*types.Person, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Person
	if len(ids) == 0 {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("owner_user_id = ? AND id IN ?", ownerUserID, ids).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
