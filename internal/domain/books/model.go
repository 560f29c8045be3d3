package books

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"flowvault/internal/domain/workflow"
)

type Book struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID string `gorm:"type:uuid;not null;index" json:"project_id"`
	ClientID  string `gorm:"type:uuid;not null;index" json:"client_id"`
	Name      string `gorm:"not null" json:"name"`

	// Status is always a stage display status from the workflow catalog.
	Status string `gorm:"not null;index" json:"status"`

	ExpectedPageCount int    `gorm:"not null;default:0" json:"expected_page_count"`
	Priority          string `gorm:"not null;default:'Medium'" json:"priority"` // Low | Medium | High
	Author            string `json:"author,omitempty"`
	ISBN              string `json:"isbn,omitempty"`
	PublicationYear   *int   `json:"publication_year,omitempty"`
	Info              string `json:"info,omitempty"`

	ScannerUserID *string    `gorm:"type:uuid;index" json:"scanner_user_id,omitempty"`
	ScanStart     *time.Time `json:"scan_start,omitempty"`
	ScanEnd       *time.Time `json:"scan_end,omitempty"`

	IndexerUserID *string    `gorm:"type:uuid;index" json:"indexer_user_id,omitempty"`
	IndexStart    *time.Time `json:"index_start,omitempty"`
	IndexEnd      *time.Time `json:"index_end,omitempty"`

	QCUserID *string    `gorm:"type:uuid;index" json:"qc_user_id,omitempty"`
	QCStart  *time.Time `json:"qc_start,omitempty"`
	QCEnd    *time.Time `json:"qc_end,omitempty"`

	RejectionReason *string `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page flag levels.
const (
	FlagNone    = ""
	FlagInfo    = "info"
	FlagWarning = "warning"
	FlagError   = "error"
)

// Page is one scanned image of a book. Pages are created in bulk when a scan
// is marked complete and follow the book's status from then on.
type Page struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	BookID   string `gorm:"type:uuid;not null;index" json:"book_id"`
	ClientID string `gorm:"type:uuid;not null;index" json:"client_id"`
	Name     string `gorm:"not null" json:"name"`
	Status   string `gorm:"not null" json:"status"`
	Position int    `gorm:"not null;default:0" json:"position"`

	Flag        string  `json:"flag,omitempty"` // info | warning | error, empty when unflagged
	FlagComment *string `json:"flag_comment,omitempty"`

	// Rejection-tag labels, serialized as a JSON array.
	Tags string `gorm:"not null;default:'[]'" json:"tags"`

	ImageURL string `json:"image_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		first := workflow.Sequence[0]
		b.Status = first.Status
	}
	return nil
}

func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// roleFields maps a stage role to the book columns it owns.
func roleFields(role workflow.Role) (userCol, startCol, endCol string) {
	switch role {
	case workflow.RoleScanner:
		return "scanner_user_id", "scan_start", "scan_end"
	case workflow.RoleIndexer:
		return "indexer_user_id", "index_start", "index_end"
	case workflow.RoleQC:
		return "qc_user_id", "qc_start", "qc_end"
	}
	return "", "", ""
}

// AssigneeID returns the book's assignee for a stage role.
func (b *Book) AssigneeID(role workflow.Role) *string {
	switch role {
	case workflow.RoleScanner:
		return b.ScannerUserID
	case workflow.RoleIndexer:
		return b.IndexerUserID
	case workflow.RoleQC:
		return b.QCUserID
	}
	return nil
}
