package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Log is one append-only audit entry. Rows are never updated; they are only
// removed by an admin cascade delete of the owning book.
type Log struct {
	ID      string  `gorm:"type:uuid;primaryKey" json:"id"`
	Action  string  `gorm:"not null;index" json:"action"`
	Details string  `json:"details"`
	UserID  string  `gorm:"type:uuid;not null;index" json:"user_id"`
	BookID  *string `gorm:"type:uuid;index" json:"book_id,omitempty"`
	PageID  *string `gorm:"type:uuid;index" json:"page_id,omitempty"`

	Date time.Time `gorm:"not null;index" json:"date"`
}

func (l *Log) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Date.IsZero() {
		l.Date = time.Now()
	}
	return nil
}

// Entry is the caller-facing shape for Append.
type Entry struct {
	Action  string
	Details string
	UserID  string
	BookID  string
	PageID  string
}

// Append writes one audit entry inside the caller's transaction, so the entry
// commits with the state change it explains or not at all.
func Append(tx *gorm.DB, e Entry) error {
	row := Log{
		Action:  e.Action,
		Details: e.Details,
		UserID:  e.UserID,
	}
	if e.BookID != "" {
		row.BookID = &e.BookID
	}
	if e.PageID != "" {
		row.PageID = &e.PageID
	}
	return tx.Create(&row).Error
}
