package batches

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery batch statuses. Ready -> Validating -> Delivered, no regression.
const (
	DeliveryReady      = "Ready"
	DeliveryValidating = "Validating"
	DeliveryDelivered  = "Delivered"
)

// Delivery item decisions.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// DeliveryBatch is a set of books shipped to a client for acceptance review.
type DeliveryBatch struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID     string     `gorm:"type:uuid;not null;index" json:"client_id"`
	CreationDate time.Time  `gorm:"not null" json:"creation_date"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	Status       string     `gorm:"not null;default:'Ready'" json:"status"`
	CreatedByID  string     `gorm:"type:uuid;not null" json:"created_by_id"`
	Info         string     `json:"info,omitempty"`

	Items []DeliveryBatchItem `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE;" json:"items,omitempty"`
}

type DeliveryBatchItem struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	DeliveryID string `gorm:"type:uuid;not null;index" json:"delivery_id"`
	BookID     string `gorm:"type:uuid;not null;index" json:"book_id"`

	// Nil until the item is sampled for validation; unsampled items are
	// auto-approved at finalization.
	AssignedUserID *string `gorm:"type:uuid;index" json:"assigned_user_id,omitempty"`
	Status         string  `gorm:"not null;default:'pending'" json:"status"`
}

func (b *DeliveryBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreationDate.IsZero() {
		b.CreationDate = time.Now()
	}
	return nil
}

func (i *DeliveryBatchItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
