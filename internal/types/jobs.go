package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QueueName identifies an upstream processing queue the evaluation engine may
// wait on before matching.
type QueueName string

const (
	QueueMetadataExtraction QueueName = "metadata_extraction"
	QueueSidecar            QueueName = "sidecar"
	QueueFaceDetection      QueueName = "face_detection"
	QueueFacialRecognition  QueueName = "facial_recognition"
	QueueSmartSearch        QueueName = "smart_search"
)

type JobStatus string

const (
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
	JobStatusSkipped JobStatus = "skipped"
)

// JobRun records a single triggered evaluation for audit and manual retries.
// The queue infrastructure itself lives outside this service; only its
// completion contract is consumed.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Status      string         `gorm:"column:status;not null;default:'queued';index" json:"status"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }
