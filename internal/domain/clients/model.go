package clients

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string `gorm:"not null;uniqueIndex:idx_clients_name" json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	Address      string `json:"address,omitempty"`
	Website      string `json:"website,omitempty"`
	Info         string `json:"info,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RejectionTag is a reusable, client-scoped rejection reason. Validators pick
// tags by label when rejecting; the book keeps the free-text reason, so tags
// can be edited or removed without breaking history.
type RejectionTag struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    string `gorm:"type:uuid;not null;index" json:"client_id"`
	Label       string `gorm:"not null" json:"label"`
	Description string `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (t *RejectionTag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
