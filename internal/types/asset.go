package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssetType string

const (
	AssetTypeImage AssetType = "IMAGE"
	AssetTypeVideo AssetType = "VIDEO"
	AssetTypeAudio AssetType = "AUDIO"
	AssetTypeOther AssetType = "OTHER"
)

type Asset struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Owner       *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerUserID;references:ID" json:"owner,omitempty"`

	Type         AssetType  `gorm:"column:type;not null;index" json:"type"`
	OriginalPath string     `gorm:"column:original_path;not null" json:"original_path"`
	DeviceID     string     `gorm:"column:device_id;index" json:"device_id,omitempty"`
	LibraryID    *uuid.UUID `gorm:"type:uuid;index" json:"library_id,omitempty"`

	IsArchived bool `gorm:"column:is_archived;not null;default:false;index" json:"is_archived"`
	IsFavorite bool `gorm:"column:is_favorite;not null;default:false" json:"is_favorite"`
	IsVisible  bool `gorm:"column:is_visible;not null;default:true;index" json:"is_visible"`
	IsOffline  bool `gorm:"column:is_offline;not null;default:false" json:"is_offline"`
	IsExternal bool `gorm:"column:is_external;not null;default:false" json:"is_external"`
	IsReadOnly bool `gorm:"column:is_read_only;not null;default:false" json:"is_read_only"`
	IsEncoded  bool `gorm:"column:is_encoded;not null;default:false" json:"is_encoded"`
	IsMotion   bool `gorm:"column:is_motion;not null;default:false" json:"is_motion"`

	FileCreatedAt time.Time  `gorm:"column:file_created_at;not null;index" json:"file_created_at"`
	TakenAt       *time.Time `gorm:"column:taken_at;index" json:"taken_at,omitempty"`
	TrashedAt     *time.Time `gorm:"column:trashed_at;index" json:"trashed_at,omitempty"`

	Exif  *AssetExif  `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssetID;references:ID" json:"exif,omitempty"`
	Faces []AssetFace `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssetID;references:ID" json:"faces,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Asset) TableName() string { return "asset" }

// PersonIDSet collects the distinct recognized people on this asset. Faces
// without an assigned person are skipped.
func (a *Asset) PersonIDSet() map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(a.Faces))
	for _, face := range a.Faces {
		if face.PersonID != nil && *face.PersonID != uuid.Nil {
			out[*face.PersonID] = struct{}{}
		}
	}
	return out
}

type AssetExif struct {
	AssetID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"asset_id"`
	City      string    `gorm:"column:city;index" json:"city,omitempty"`
	State     string    `gorm:"column:state" json:"state,omitempty"`
	Country   string    `gorm:"column:country;index" json:"country,omitempty"`
	Make      string    `gorm:"column:make;index" json:"make,omitempty"`
	Model     string    `gorm:"column:model;index" json:"model,omitempty"`
	LensModel string    `gorm:"column:lens_model" json:"lens_model,omitempty"`
}

func (AssetExif) TableName() string { return "asset_exif" }
