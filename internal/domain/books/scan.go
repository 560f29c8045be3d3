package books

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// CompleteScan closes the scanning phase of a book: it creates one Page per
// physical page counted, fixes the expected count to the actual one, stamps
// the scan end time and moves the book to Storage. Books of projects with
// scanning disabled take the same path straight from Received.
func CompleteScan(tx *gorm.DB, bookID string, actor *users.User, actualPageCount int) (*Book, error) {
	if actualPageCount < 0 {
		return nil, workflow.ErrInvalidTransition
	}
	var book Book
	if err := tx.First(&book, "id = ?", bookID).Error; err != nil {
		return nil, err
	}
	if !actor.AuthorizedForProject(book.ProjectID) {
		return nil, workflow.ErrPermissionDenied
	}

	current, ok := workflow.FromStatus(book.Status)
	if !ok {
		return nil, workflow.ErrUnknownStage
	}
	skipped := current.Key == workflow.StageAlreadyReceived
	if !skipped && current.Key != workflow.StageScanningStarted {
		return nil, workflow.ErrInvalidTransition
	}

	storage, _ := workflow.ByKey(workflow.StageStorage)
	updates := map[string]any{
		"status":              storage.Status,
		"scan_end":            time.Now(),
		"expected_page_count": actualPageCount,
	}
	res := tx.Model(&Book{}).
		Where("id = ? AND status = ?", book.ID, book.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, workflow.ErrConflict
	}

	for i := 1; i <= actualPageCount; i++ {
		page := Page{
			BookID:   book.ID,
			ClientID: book.ClientID,
			Name:     fmt.Sprintf("%s - Page %d", book.Name, i),
			Status:   storage.Status,
			Position: i,
		}
		if err := tx.Create(&page).Error; err != nil {
			return nil, err
		}
	}

	action := "Scanning Finished"
	if skipped {
		action = "Reception & Scan Skipped"
	}
	if err := audit.Append(tx, audit.Entry{
		Action:  action,
		Details: fmt.Sprintf("%d pages created. Book %q moved to Storage.", actualPageCount, book.Name),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}
