package batches

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// CreateProcessingBatch submits books that are Ready for Processing to the
// automated pipeline. Membership is fixed here; workers report back per item.
func CreateProcessingBatch(tx *gorm.DB, actor *users.User, bookIDs []string, info string) (*ProcessingBatch, error) {
	if len(bookIDs) == 0 {
		return nil, workflow.ErrInvalidTransition
	}
	readyStage, _ := workflow.ByKey(workflow.StageReadyForProcessing)
	inProcStage, _ := workflow.ByKey(workflow.StageInProcessing)

	var list []books.Book
	if err := tx.Where("id IN ?", bookIDs).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) != len(bookIDs) {
		return nil, gorm.ErrRecordNotFound
	}
	for _, b := range list {
		if b.Status != readyStage.Status {
			return nil, workflow.ErrInvalidTransition
		}
	}

	batch := ProcessingBatch{
		Status: ProcessingInProgress,
		Info:   info,
	}
	for _, b := range list {
		batch.Items = append(batch.Items, ProcessingBatchItem{
			BookID: b.ID,
			Status: ItemPending,
		})
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}

	for _, b := range list {
		if err := moveBook(tx, &b, readyStage.Status, inProcStage.Status); err != nil {
			return nil, err
		}
		if err := audit.Append(tx, audit.Entry{
			Action:  "Processing Started",
			Details: fmt.Sprintf("Book %q entered automated processing.", b.Name),
			UserID:  actor.ID,
			BookID:  b.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := audit.Append(tx, audit.Entry{
		Action:  "Processing Batch Created",
		Details: fmt.Sprintf("Processing batch with %d book(s) created.", len(list)),
		UserID:  actor.ID,
	}); err != nil {
		return nil, err
	}
	return reloadProcessing(tx, batch.ID)
}

// ItemUpdate is one worker report against a processing item.
type ItemUpdate struct {
	Status             string
	ProcessedPageCount *int
	Info               string
}

// UpdateProcessingItem applies a worker report. A completed item releases its
// book to the next stage of its project's workflow in the same transaction;
// once every item is terminal the batch closes with an aggregate status.
func UpdateProcessingItem(tx *gorm.DB, actor *users.User, itemID string, upd ItemUpdate) (*ProcessingBatch, error) {
	var item ProcessingBatchItem
	if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	if Terminal(item.Status) {
		return nil, workflow.ErrInvalidTransition
	}
	switch upd.Status {
	case ItemInProgress, ItemComplete, ItemFailed:
	default:
		return nil, workflow.ErrInvalidTransition
	}

	now := time.Now()
	updates := map[string]any{"status": upd.Status}
	if item.ItemStart == nil {
		updates["item_start"] = now
	}
	if Terminal(upd.Status) {
		updates["item_end"] = now
	}
	if upd.ProcessedPageCount != nil {
		updates["processed_page_count"] = *upd.ProcessedPageCount
	}
	if upd.Info != "" {
		updates["info"] = upd.Info
	}
	res := tx.Model(&ProcessingBatchItem{}).
		Where("id = ? AND status = ?", item.ID, item.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, workflow.ErrConflict
	}

	var book books.Book
	if err := tx.First(&book, "id = ?", item.BookID).Error; err != nil {
		return nil, err
	}

	switch upd.Status {
	case ItemComplete:
		enabled, err := projects.EnabledStageKeys(tx, book.ProjectID)
		if err != nil {
			return nil, err
		}
		next, ok, err := workflow.NextEnabled(workflow.StageInProcessing, enabled)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, workflow.ErrInvalidTransition
		}
		inProcStage, _ := workflow.ByKey(workflow.StageInProcessing)
		if err := moveBook(tx, &book, inProcStage.Status, next.Status); err != nil {
			return nil, err
		}
		if err := audit.Append(tx, audit.Entry{
			Action:  "Processing Finished",
			Details: fmt.Sprintf("Automated processing of book %q completed.", book.Name),
			UserID:  actor.ID,
			BookID:  book.ID,
		}); err != nil {
			return nil, err
		}
	case ItemFailed:
		// Failed books stay In Processing for an admin override or a retry.
		if err := audit.Append(tx, audit.Entry{
			Action:  "Processing Failed",
			Details: fmt.Sprintf("Automated processing of book %q failed. %s", book.Name, upd.Info),
			UserID:  actor.ID,
			BookID:  book.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := rollupBatch(tx, item.BatchID); err != nil {
		return nil, err
	}
	return reloadProcessing(tx, item.BatchID)
}

// BatchUpdate is a batch-level worker report, for engines that track their own
// progress instead of reporting per item.
type BatchUpdate struct {
	Status   string
	Progress *float64
	Info     string
}

// UpdateProcessingBatch applies a batch-level worker report. Closed batches
// are immutable.
func UpdateProcessingBatch(tx *gorm.DB, actor *users.User, batchID string, upd BatchUpdate) (*ProcessingBatch, error) {
	var batch ProcessingBatch
	if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
		return nil, err
	}
	if batch.Status != ProcessingInProgress {
		return nil, workflow.ErrInvalidTransition
	}

	updates := map[string]any{}
	switch upd.Status {
	case "":
	case ProcessingInProgress:
	case ProcessingComplete, ProcessingFailed:
		updates["status"] = upd.Status
		updates["end_time"] = time.Now()
	default:
		return nil, workflow.ErrInvalidTransition
	}
	if upd.Progress != nil {
		p := *upd.Progress
		if p < 0 || p > 100 {
			return nil, workflow.ErrInvalidTransition
		}
		updates["progress"] = p
	}
	if upd.Info != "" {
		updates["info"] = upd.Info
	}
	if len(updates) > 0 {
		res := tx.Model(&ProcessingBatch{}).
			Where("id = ? AND status = ?", batch.ID, ProcessingInProgress).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, workflow.ErrConflict
		}
	}
	if _, ok := updates["status"]; ok {
		if err := audit.Append(tx, audit.Entry{
			Action:  "Processing Batch Closed",
			Details: fmt.Sprintf("Processing batch marked %s by the worker.", upd.Status),
			UserID:  actor.ID,
		}); err != nil {
			return nil, err
		}
	}
	return reloadProcessing(tx, batchID)
}

// rollupBatch recomputes a batch's progress from its items and closes the
// batch when every item is terminal. Any failed item fails the batch.
func rollupBatch(tx *gorm.DB, batchID string) error {
	var items []ProcessingBatchItem
	if err := tx.Where("batch_id = ?", batchID).Find(&items).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	terminal := 0
	completed := 0
	failed := 0
	for _, it := range items {
		if Terminal(it.Status) {
			terminal++
		}
		switch it.Status {
		case ItemComplete:
			completed++
		case ItemFailed:
			failed++
		}
	}
	progress := math.Round(float64(completed)/float64(len(items))*10000) / 100

	updates := map[string]any{"progress": progress}
	if terminal == len(items) {
		status := ProcessingComplete
		if failed > 0 {
			status = ProcessingFailed
		}
		updates["status"] = status
		updates["end_time"] = time.Now()
	}
	return tx.Model(&ProcessingBatch{}).Where("id = ?", batchID).Updates(updates).Error
}

// ProcessingStats aggregates run durations of a finished or running batch.
type ProcessingStats struct {
	TotalBooks        int      `json:"total_books"`
	CompletedBooks    int      `json:"completed_books"`
	FailedBooks       int      `json:"failed_books"`
	TotalPages        int      `json:"total_pages"`
	AvgSecondsPerBook *float64 `json:"avg_seconds_per_book,omitempty"`
	AvgSecondsPerPage *float64 `json:"avg_seconds_per_page,omitempty"`
}

// Stats derives reporting figures from a batch. The averages divide the
// batch's wall-clock run over its book and page counts, so they exist only
// once the batch has an end time. Advisory numbers, never used to gate
// transitions.
func Stats(batch *ProcessingBatch) ProcessingStats {
	stats := ProcessingStats{TotalBooks: len(batch.Items)}
	for _, it := range batch.Items {
		switch it.Status {
		case ItemComplete:
			stats.CompletedBooks++
		case ItemFailed:
			stats.FailedBooks++
		}
		if it.ProcessedPageCount != nil {
			stats.TotalPages += *it.ProcessedPageCount
		}
	}
	if batch.EndTime == nil {
		return stats
	}
	elapsed := batch.EndTime.Sub(batch.StartTime).Seconds()
	if stats.TotalBooks > 0 {
		perBook := elapsed / float64(stats.TotalBooks)
		stats.AvgSecondsPerBook = &perBook
	}
	if stats.TotalPages > 0 {
		perPage := elapsed / float64(stats.TotalPages)
		stats.AvgSecondsPerPage = &perPage
	}
	return stats
}

func reloadProcessing(tx *gorm.DB, id string) (*ProcessingBatch, error) {
	var batch ProcessingBatch
	if err := tx.Preload("Items").First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
