package batches

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Processing batch statuses.
const (
	ProcessingInProgress = "In Progress"
	ProcessingComplete   = "Complete"
	ProcessingFailed     = "Failed"
)

// Processing item statuses. The OCR worker drives items from Pending to a
// terminal status; the orchestrator only aggregates.
const (
	ItemPending    = "Pending"
	ItemInProgress = "In Progress"
	ItemComplete   = "Complete"
	ItemFailed     = "Failed"
)

// ProcessingBatch groups books submitted together to automated processing.
// Membership is immutable after creation.
type ProcessingBatch struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	StartTime time.Time  `gorm:"not null" json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `gorm:"not null;default:'In Progress'" json:"status"`
	Progress  float64    `gorm:"not null;default:0" json:"progress"`
	Info      string     `json:"info,omitempty"`

	Items []ProcessingBatchItem `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE;" json:"items,omitempty"`
}

type ProcessingBatchItem struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID string `gorm:"type:uuid;not null;index" json:"batch_id"`
	BookID  string `gorm:"type:uuid;not null;index" json:"book_id"`

	ItemStart          *time.Time `json:"item_start,omitempty"`
	ItemEnd            *time.Time `json:"item_end,omitempty"`
	ProcessedPageCount *int       `json:"processed_page_count,omitempty"`
	Status             string     `gorm:"not null;default:'Pending'" json:"status"`
	Info               string     `json:"info,omitempty"`
}

func (b *ProcessingBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.StartTime.IsZero() {
		b.StartTime = time.Now()
	}
	return nil
}

func (i *ProcessingBatchItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Terminal reports whether an item status is final.
func Terminal(itemStatus string) bool {
	return itemStatus == ItemComplete || itemStatus == ItemFailed
}
