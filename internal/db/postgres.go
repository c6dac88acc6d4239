package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
	"github.com/diegobr89/immich/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "immich", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		log.Error("Failed to enable pgvector extension", "error", err)
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll(clipDim int) error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Person{},
		&types.Asset{},
		&types.AssetExif{},
		&types.AssetFace{},
		&types.Album{},
		&types.AlbumSmartSearch{},
		&types.JobRun{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// GORM has no native column type for pgvector, so the embedding table is
	// created by hand. The dimension follows the configured CLIP model.
	if clipDim <= 0 {
		clipDim = 512
	}
	if err := s.db.Exec(fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS smart_search (
      asset_id uuid PRIMARY KEY REFERENCES "asset"("id") ON DELETE CASCADE,
      embedding vector(%d) NOT NULL
    )
  `, clipDim)).Error; err != nil {
		s.log.Error("Failed to create smart_search table", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []string{
		`ALTER TABLE "albums_smart_search"
       DROP CONSTRAINT IF EXISTS "fk_albums_smart_search_album_id",
       ADD CONSTRAINT "fk_albums_smart_search_album_id"
       FOREIGN KEY ("album_id") REFERENCES "album"("id") ON DELETE CASCADE`,
		`ALTER TABLE "asset_face"
       DROP CONSTRAINT IF EXISTS "fk_asset_face_asset_id",
       ADD CONSTRAINT "fk_asset_face_asset_id"
       FOREIGN KEY ("asset_id") REFERENCES "asset"("id") ON DELETE CASCADE`,
		`ALTER TABLE "asset_exif"
       DROP CONSTRAINT IF EXISTS "fk_asset_exif_asset_id",
       ADD CONSTRAINT "fk_asset_exif_asset_id"
       FOREIGN KEY ("asset_id") REFERENCES "asset"("id") ON DELETE CASCADE`,
	}
	for _, stmt := range constraints {
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Error("Failed to configure foreign key", "error", err)
			return err
		}
	}
	return nil
}
