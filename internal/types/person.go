package types

import (
	"time"

	"github.com/google/uuid"
)

// Person is a recognized individual produced by the facial-recognition
// pipeline. The engine only reads the id and name; clustering is upstream.
type Person struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Owner         *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerUserID;references:ID" json:"owner,omitempty"`
	Name          string     `gorm:"column:name" json:"name"`
	ThumbnailPath string     `gorm:"column:thumbnail_path" json:"thumbnail_path,omitempty"`
	IsHidden      bool       `gorm:"column:is_hidden;not null;default:false" json:"is_hidden"`
	BirthDate     *time.Time `gorm:"column:birth_date" json:"birth_date,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Person) TableName() string { return "person" }

// AssetFace links a detected face region on an asset to a person. PersonID is
// nil until facial recognition has assigned the face.
type AssetFace struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AssetID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"asset_id"`
	PersonID *uuid.UUID `gorm:"type:uuid;index" json:"person_id,omitempty"`
	Person   *Person    `gorm:"constraint:OnDelete:SET NULL;foreignKey:PersonID;references:ID" json:"person,omitempty"`

	BoundingBoxX1 int `gorm:"column:bounding_box_x1;not null;default:0" json:"bounding_box_x1"`
	BoundingBoxY1 int `gorm:"column:bounding_box_y1;not null;default:0" json:"bounding_box_y1"`
	BoundingBoxX2 int `gorm:"column:bounding_box_x2;not null;default:0" json:"bounding_box_x2"`
	BoundingBoxY2 int `gorm:"column:bounding_box_y2;not null;default:0" json:"bounding_box_y2"`
}

func (AssetFace) TableName() string { return "asset_face" }
