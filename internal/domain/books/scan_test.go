package books_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"flowvault/internal/domain/books"
	"flowvault/internal/domain/workflow"
)

func (f *fixture) completeScan(t *testing.T, bookID string, actorID string, count int) (*books.Book, error) {
	t.Helper()
	var actor = f.scanner
	if actorID != "" {
		require.NoError(t, f.db.First(&actor, "id = ?", actorID).Error)
	}
	var out *books.Book
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = books.CompleteScan(tx, bookID, &actor, count)
		return err
	})
	return out, err
}

func TestCompleteScanCreatesPages(t *testing.T) {
	f := newFixture(t)
	b := f.makeBook(t, "Scanning Started")
	require.NoError(t, f.db.Model(&books.Book{}).Where("id = ?", b.ID).
		Update("scanner_user_id", f.scanner.ID).Error)

	got, err := f.completeScan(t, b.ID, "", 4)
	require.NoError(t, err)
	assert.Equal(t, "Storage", got.Status)
	assert.Equal(t, 4, got.ExpectedPageCount)
	assert.NotNil(t, got.ScanEnd)

	var pages []books.Page
	require.NoError(t, f.db.Where("book_id = ?", b.ID).Order("position ASC").Find(&pages).Error)
	require.Len(t, pages, 4)
	for i, p := range pages {
		assert.Equal(t, fmt.Sprintf("%s - Page %d", b.Name, i+1), p.Name)
		assert.Equal(t, i+1, p.Position)
		assert.Equal(t, "Storage", p.Status)
		assert.Equal(t, f.client.ID, p.ClientID)
	}

	assert.Equal(t, []string{"Scanning Finished"}, f.auditActions(t, b.ID))
}

func TestCompleteScanSkippedReception(t *testing.T) {
	// Projects that receive digital originals jump from Received straight to
	// Storage; the audit trail says so.
	f := newFixture(t)
	b := f.makeBook(t, "Received")

	got, err := f.completeScan(t, b.ID, "", 2)
	require.NoError(t, err)
	assert.Equal(t, "Storage", got.Status)
	assert.Equal(t, []string{"Reception & Scan Skipped"}, f.auditActions(t, b.ID))
}

func TestCompleteScanFromWrongStage(t *testing.T) {
	f := newFixture(t)
	b := f.makeBook(t, "To Indexing")

	_, err := f.completeScan(t, b.ID, "", 2)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}
