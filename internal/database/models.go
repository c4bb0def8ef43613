package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is a stored output document.
type Document struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Filename   string     `gorm:"size:255;not null" json:"filename"`
	StorageKey string     `gorm:"size:1000;not null;uniqueIndex" json:"-"`
	Size       int64      `json:"size"`
	Pages      int        `json:"pages"`
	Inputs     int        `json:"inputs"`
	Source     string     `gorm:"size:20;default:upload" json:"source"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// LoginAttempt represents a login attempt, kept for auditing
type LoginAttempt struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IPAddress   string    `gorm:"size:45;not null;index" json:"ip_address"`
	Username    string    `gorm:"index" json:"username,omitempty"`
	Success     bool      `gorm:"default:false" json:"success"`
	AttemptedAt time.Time `gorm:"index" json:"attempted_at"`
	UserAgent   string    `gorm:"type:text" json:"user_agent,omitempty"`
}

func (l *LoginAttempt) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.AttemptedAt.IsZero() {
		l.AttemptedAt = time.Now().UTC()
	}
	return nil
}

// GetAllModels returns every model managed by migrations.
func GetAllModels() []interface{} {
	return []interface{}{
		&Document{},
		&LoginAttempt{},
	}
}
