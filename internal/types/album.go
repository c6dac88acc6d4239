package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Album struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Owner       *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerUserID;references:ID" json:"owner,omitempty"`

	Name        string `gorm:"column:name;not null" json:"name"`
	Description string `gorm:"column:description" json:"description"`

	ThumbnailAssetID *uuid.UUID `gorm:"type:uuid" json:"thumbnail_asset_id,omitempty"`

	Assets []Asset `gorm:"many2many:albums_assets;" json:"assets,omitempty"`

	// People and PeopleTogether drive the person fast-path: an album created
	// via "add people" matches new assets against its person set without a
	// search round-trip. PeopleTogether=true requires every listed person on
	// the asset; false requires at least one.
	People         []Person `gorm:"many2many:albums_people;" json:"people,omitempty"`
	PeopleTogether bool     `gorm:"column:people_together;not null;default:false" json:"people_together"`

	// SmartSearch turns this into a smart album: membership is re-derived
	// from the stored specification on every trigger. Deleted with the album.
	SmartSearch *AlbumSmartSearch `gorm:"constraint:OnDelete:CASCADE;foreignKey:AlbumID;references:ID" json:"smart_search,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Album) TableName() string { return "album" }

// IsSmart reports whether this album derives membership from a stored
// search specification or the person fast-path.
func (a *Album) IsSmart() bool {
	return a.SmartSearch != nil || len(a.People) > 0
}

// AlbumSmartSearch is the persisted search specification of a smart album.
// Exactly one matching strategy is active per evaluation: a non-empty Query
// selects semantic search and every structured filter below is ignored; an
// empty Query selects the structured metadata search.
type AlbumSmartSearch struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AlbumID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"album_id"`

	Query string `gorm:"column:query" json:"query,omitempty"`

	People []Person `gorm:"many2many:albums_smart_search_people;" json:"people,omitempty"`

	LibraryID *uuid.UUID `gorm:"type:uuid" json:"library_id,omitempty"`
	DeviceID  *string    `gorm:"column:device_id" json:"device_id,omitempty"`
	Type      *AssetType `gorm:"column:type" json:"type,omitempty"`

	IsArchived   *bool `gorm:"column:is_archived" json:"is_archived,omitempty"`
	WithArchived *bool `gorm:"column:with_archived" json:"with_archived,omitempty"`
	IsEncoded    *bool `gorm:"column:is_encoded" json:"is_encoded,omitempty"`
	IsExternal   *bool `gorm:"column:is_external" json:"is_external,omitempty"`
	IsFavorite   *bool `gorm:"column:is_favorite" json:"is_favorite,omitempty"`
	IsMotion     *bool `gorm:"column:is_motion" json:"is_motion,omitempty"`
	IsOffline    *bool `gorm:"column:is_offline" json:"is_offline,omitempty"`
	IsReadOnly   *bool `gorm:"column:is_read_only" json:"is_read_only,omitempty"`
	IsVisible    *bool `gorm:"column:is_visible" json:"is_visible,omitempty"`
	WithDeleted  *bool `gorm:"column:with_deleted" json:"with_deleted,omitempty"`
	WithExif     *bool `gorm:"column:with_exif" json:"with_exif,omitempty"`
	IsNotInAlbum *bool `gorm:"column:is_not_in_album" json:"is_not_in_album,omitempty"`

	CreatedBefore *time.Time `gorm:"column:created_before" json:"created_before,omitempty"`
	CreatedAfter  *time.Time `gorm:"column:created_after" json:"created_after,omitempty"`
	UpdatedBefore *time.Time `gorm:"column:updated_before" json:"updated_before,omitempty"`
	UpdatedAfter  *time.Time `gorm:"column:updated_after" json:"updated_after,omitempty"`
	TrashedBefore *time.Time `gorm:"column:trashed_before" json:"trashed_before,omitempty"`
	TrashedAfter  *time.Time `gorm:"column:trashed_after" json:"trashed_after,omitempty"`
	TakenBefore   *time.Time `gorm:"column:taken_before" json:"taken_before,omitempty"`
	TakenAfter    *time.Time `gorm:"column:taken_after" json:"taken_after,omitempty"`

	City      *string `gorm:"column:city" json:"city,omitempty"`
	State     *string `gorm:"column:state" json:"state,omitempty"`
	Country   *string `gorm:"column:country" json:"country,omitempty"`
	Make      *string `gorm:"column:make" json:"make,omitempty"`
	Model     *string `gorm:"column:model" json:"model,omitempty"`
	LensModel *string `gorm:"column:lens_model" json:"lens_model,omitempty"`

	Page *int `gorm:"column:page" json:"page,omitempty"`
	Size *int `gorm:"column:size" json:"size,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AlbumSmartSearch) TableName() string { return "albums_smart_search" }

// Empty reports whether the specification carries no matching criteria at
// all: no query, no people, no structured filter. Page and size are
// pagination, not criteria, and do not count. An empty specification never
// evaluates; without this guard it would degenerate into a match-everything
// structured search.
func (s *AlbumSmartSearch) Empty() bool {
	if s == nil {
		return true
	}
	if strings.TrimSpace(s.Query) != "" || len(s.People) > 0 {
		return false
	}
	filters := []bool{
		s.LibraryID != nil, s.DeviceID != nil, s.Type != nil,
		s.IsArchived != nil, s.WithArchived != nil, s.IsEncoded != nil,
		s.IsExternal != nil, s.IsFavorite != nil, s.IsMotion != nil,
		s.IsOffline != nil, s.IsReadOnly != nil, s.IsVisible != nil,
		s.WithDeleted != nil, s.WithExif != nil, s.IsNotInAlbum != nil,
		s.CreatedBefore != nil, s.CreatedAfter != nil,
		s.UpdatedBefore != nil, s.UpdatedAfter != nil,
		s.TrashedBefore != nil, s.TrashedAfter != nil,
		s.TakenBefore != nil, s.TakenAfter != nil,
		s.City != nil, s.State != nil, s.Country != nil,
		s.Make != nil, s.Model != nil, s.LensModel != nil,
	}
	for _, set := range filters {
		if set {
			return false
		}
	}
	return true
}
