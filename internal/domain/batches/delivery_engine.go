package batches

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// Finalize modes.
const (
	FinalizeApproveRemaining = "approve_remaining"
	FinalizeRejectAll        = "reject_all"
)

// CreateDelivery bundles books sitting in Delivery into a new Ready batch and
// parks them in Pending Validation. Every book must belong to the batch's
// client; a book that moved concurrently fails the whole creation.
func CreateDelivery(tx *gorm.DB, actor *users.User, clientID string, bookIDs []string, info string) (*DeliveryBatch, error) {
	if len(bookIDs) == 0 {
		return nil, workflow.ErrInvalidTransition
	}
	deliveryStage, _ := workflow.ByKey(workflow.StageDelivery)
	pendingStage, _ := workflow.ByKey(workflow.StagePendingDeliveries)

	var list []books.Book
	if err := tx.Where("id IN ?", bookIDs).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) != len(bookIDs) {
		return nil, gorm.ErrRecordNotFound
	}
	for _, b := range list {
		if b.ClientID != clientID {
			return nil, workflow.ErrPermissionDenied
		}
		if b.Status != deliveryStage.Status {
			return nil, workflow.ErrInvalidTransition
		}
	}

	batch := DeliveryBatch{
		ClientID:    clientID,
		Status:      DeliveryReady,
		CreatedByID: actor.ID,
		Info:        info,
	}
	for _, b := range list {
		batch.Items = append(batch.Items, DeliveryBatchItem{
			BookID: b.ID,
			Status: DecisionPending,
		})
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}

	for _, b := range list {
		if err := moveBook(tx, &b, deliveryStage.Status, pendingStage.Status); err != nil {
			return nil, err
		}
		if err := audit.Append(tx, audit.Entry{
			Action:  "Added to Delivery Batch",
			Details: fmt.Sprintf("Book %q included in delivery batch for validation.", b.Name),
			UserID:  actor.ID,
			BookID:  b.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := audit.Append(tx, audit.Entry{
		Action:  "Delivery Batch Created",
		Details: fmt.Sprintf("Delivery batch with %d book(s) created.", len(list)),
		UserID:  actor.ID,
	}); err != nil {
		return nil, err
	}
	return reloadDelivery(tx, batch.ID)
}

// Distribute samples a share of a Ready batch's items for client validation
// and deals them round-robin across the given validators. percent is clamped
// to [0,100]; the sample size is ceil(n * percent / 100). Unsampled items stay
// unassigned and get auto-approved at finalization.
func Distribute(tx *gorm.DB, actor *users.User, deliveryID string, percent int, validatorIDs []string, rng *rand.Rand) (*DeliveryBatch, error) {
	batch, err := reloadDelivery(tx, deliveryID)
	if err != nil {
		return nil, err
	}
	if batch.Status != DeliveryReady {
		return nil, workflow.ErrInvalidTransition
	}
	if len(validatorIDs) == 0 {
		return nil, workflow.ErrInvalidTransition
	}

	var validators []users.User
	if err := tx.Where("id IN ?", validatorIDs).Find(&validators).Error; err != nil {
		return nil, err
	}
	if len(validators) != len(validatorIDs) {
		return nil, gorm.ErrRecordNotFound
	}
	for _, v := range validators {
		if v.Role != users.RoleClient || v.ClientID == nil || *v.ClientID != batch.ClientID {
			return nil, workflow.ErrPermissionDenied
		}
	}

	if percent <= 0 || percent > 100 {
		return nil, workflow.ErrInvalidTransition
	}
	n := len(batch.Items)
	k := int(math.Ceil(float64(n) * float64(percent) / 100))

	sampled := make([]DeliveryBatchItem, n)
	copy(sampled, batch.Items)
	rng.Shuffle(n, func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})

	for i := 0; i < k; i++ {
		uid := validatorIDs[i%len(validatorIDs)]
		res := tx.Model(&DeliveryBatchItem{}).
			Where("id = ? AND assigned_user_id IS NULL", sampled[i].ID).
			Update("assigned_user_id", uid)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, workflow.ErrConflict
		}
	}

	res := tx.Model(&DeliveryBatch{}).
		Where("id = ? AND status = ?", batch.ID, DeliveryReady).
		Update("status", DeliveryValidating)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, workflow.ErrConflict
	}

	if err := audit.Append(tx, audit.Entry{
		Action: "Delivery Distributed",
		Details: fmt.Sprintf("Delivery batch distributed: %d of %d book(s) sampled for validation across %d validator(s).",
			k, n, len(validatorIDs)),
		UserID: actor.ID,
	}); err != nil {
		return nil, err
	}
	return reloadDelivery(tx, deliveryID)
}

// DecideItem records one validator verdict on a sampled item. Only the
// assigned validator (or an admin) may decide, only while the batch is
// Validating, and only once. A rejection stores the reason on the book; the
// book's status stays Pending Validation until the batch is finalized.
func DecideItem(tx *gorm.DB, actor *users.User, itemID, decision, reason string) (*DeliveryBatchItem, error) {
	if decision != DecisionApproved && decision != DecisionRejected {
		return nil, workflow.ErrInvalidTransition
	}
	var item DeliveryBatchItem
	if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	var batch DeliveryBatch
	if err := tx.First(&batch, "id = ?", item.DeliveryID).Error; err != nil {
		return nil, err
	}
	if batch.Status != DeliveryValidating {
		return nil, workflow.ErrInvalidTransition
	}
	if actor.Role != users.RoleAdmin {
		if item.AssignedUserID == nil || *item.AssignedUserID != actor.ID {
			return nil, workflow.ErrPermissionDenied
		}
	}
	if decision == DecisionRejected && reason == "" {
		return nil, workflow.ErrInvalidTransition
	}

	res := tx.Model(&DeliveryBatchItem{}).
		Where("id = ? AND status = ?", item.ID, DecisionPending).
		Update("status", decision)
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
	if decision == DecisionRejected {
		if err := tx.Model(&books.Book{}).Where("id = ?", book.ID).
			Update("rejection_reason", reason).Error; err != nil {
			return nil, err
		}
		if err := audit.Append(tx, audit.Entry{
			Action:  "Client Rejection",
			Details: fmt.Sprintf("Book %q rejected by client. Reason: %s", book.Name, reason),
			UserID:  actor.ID,
			BookID:  book.ID,
		}); err != nil {
			return nil, err
		}
	} else {
		if err := audit.Append(tx, audit.Entry{
			Action:  "Client Approval",
			Details: fmt.Sprintf("Book %q approved by client.", book.Name),
			UserID:  actor.ID,
			BookID:  book.ID,
		}); err != nil {
			return nil, err
		}
	}

	item.Status = decision
	return &item, nil
}

// FinalizeDelivery closes a Validating batch. approve_remaining treats every
// still-pending item as accepted; reject_all overrides every verdict. Approved
// books finalize, rejected books enter the correction loop, and the batch
// itself becomes Delivered exactly once.
func FinalizeDelivery(tx *gorm.DB, actor *users.User, deliveryID, mode string) (*DeliveryBatch, error) {
	if mode != FinalizeApproveRemaining && mode != FinalizeRejectAll {
		return nil, workflow.ErrInvalidTransition
	}
	batch, err := reloadDelivery(tx, deliveryID)
	if err != nil {
		return nil, err
	}
	if batch.Status != DeliveryValidating {
		return nil, workflow.ErrInvalidTransition
	}

	pendingStage, _ := workflow.ByKey(workflow.StagePendingDeliveries)
	finalizedStage, _ := workflow.ByKey(workflow.StageFinalized)
	rejectedStage, _ := workflow.ByKey(workflow.StageClientRejections)

	for _, item := range batch.Items {
		verdict := item.Status
		bulk := false
		if mode == FinalizeRejectAll {
			verdict = DecisionRejected
		} else if verdict == DecisionPending {
			verdict = DecisionApproved
			bulk = true
		}
		if verdict != item.Status {
			if err := tx.Model(&DeliveryBatchItem{}).Where("id = ?", item.ID).
				Update("status", verdict).Error; err != nil {
				return nil, err
			}
		}

		var book books.Book
		if err := tx.First(&book, "id = ?", item.BookID).Error; err != nil {
			return nil, err
		}
		target := finalizedStage.Status
		action := "Book Finalized"
		details := fmt.Sprintf("Book %q accepted and finalized.", book.Name)
		if bulk {
			action = "Client Approval (Bulk)"
			details = fmt.Sprintf("Book %q auto-approved at batch finalization.", book.Name)
		}
		if verdict == DecisionRejected {
			target = rejectedStage.Status
			action = "Book Rejected by Client"
			details = fmt.Sprintf("Book %q entered the correction loop.", book.Name)
		}
		if err := moveBook(tx, &book, pendingStage.Status, target); err != nil {
			return nil, err
		}
		if err := audit.Append(tx, audit.Entry{
			Action:  action,
			Details: details,
			UserID:  actor.ID,
			BookID:  book.ID,
		}); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	res := tx.Model(&DeliveryBatch{}).
		Where("id = ? AND status = ?", batch.ID, DeliveryValidating).
		Updates(map[string]any{"status": DeliveryDelivered, "delivery_date": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, workflow.ErrConflict
	}

	if err := audit.Append(tx, audit.Entry{
		Action:  "Delivery Finalized",
		Details: fmt.Sprintf("Delivery batch finalized (%s).", mode),
		UserID:  actor.ID,
	}); err != nil {
		return nil, err
	}
	return reloadDelivery(tx, deliveryID)
}

// moveBook is the guarded status write shared by the batch engines: the book
// must still hold the status observed at read time, and its pages follow.
func moveBook(tx *gorm.DB, book *books.Book, from, to string) error {
	res := tx.Model(&books.Book{}).
		Where("id = ? AND status = ?", book.ID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.ErrConflict
	}
	return tx.Model(&books.Page{}).Where("book_id = ?", book.ID).
		Update("status", to).Error
}

func reloadDelivery(tx *gorm.DB, id string) (*DeliveryBatch, error) {
	var batch DeliveryBatch
	if err := tx.Preload("Items").First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
