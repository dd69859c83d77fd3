package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func init() {
	registerForAutomigration(&Recording{})
}

// Recording is one finished segment written by a camera recorder. Rows
// are removed outright once retention deletes the file.
type Recording struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UUID        string `gorm:"uniqueIndex"`
	CameraTitle string `gorm:"index"`
	Path        string
	StartedAt   time.Time `gorm:"index"`
	EndedAt     time.Time
	Packets     int64
	Bytes       int64
	Skipped     int64
	Failed      int64
	Archived    bool
	ArchiveKey  string
}

func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if len(r.UUID) == 0 {
		r.UUID = uuid.NewString()
	}
	return nil
}

func (r Recording) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
