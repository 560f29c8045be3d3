package books

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

// Transition actions accepted by ApplyTransition.
const (
	ActionShip             = "ship"
	ActionConfirmReception = "confirm_reception"
	ActionAssign           = "assign"
	ActionStart            = "start"
	ActionComplete         = "complete"
	ActionCancel           = "cancel"
	ActionMarkCorrected    = "mark_corrected"
	ActionResubmit         = "resubmit"
	ActionArchive          = "archive"
)

// TransitionRequest carries one lifecycle action against a book.
type TransitionRequest struct {
	Action      string
	Note        string
	Role        workflow.Role     // assign only
	AssigneeID  string            // assign only
	TargetStage workflow.StageKey // resubmit only
}

// ApplyTransition advances a book one step through its project's effective
// stage sequence, applying the role-assignment and timestamp side effects of
// the target stage, and appends exactly one audit entry. Every write is
// guarded on the status observed at read time; a concurrent change surfaces
// as workflow.ErrConflict and nothing is persisted.
func ApplyTransition(tx *gorm.DB, bookID string, actor *users.User, enabled []workflow.StageKey, req TransitionRequest) (*Book, error) {
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

	switch req.Action {
	case ActionShip:
		if current.Key != workflow.StagePendingShipment {
			return nil, workflow.ErrInvalidTransition
		}
		return forwardStep(tx, &book, actor, current, enabled, "Book Shipped",
			fmt.Sprintf("Client marked book %q as shipped.", book.Name), req.Note, nil)

	case ActionConfirmReception:
		if current.Key != workflow.StageConfirmReception {
			return nil, workflow.ErrInvalidTransition
		}
		return forwardStep(tx, &book, actor, current, enabled, "Reception Confirmed",
			fmt.Sprintf("Book %q has been marked as received.", book.Name), req.Note, nil)

	case ActionAssign:
		return applyAssign(tx, &book, actor, current, enabled, req)

	case ActionStart:
		return applyStart(tx, &book, actor, current, enabled)

	case ActionComplete:
		return applyComplete(tx, &book, actor, current, enabled, req.Note)

	case ActionCancel:
		return applyCancel(tx, &book, actor, current)

	case ActionMarkCorrected:
		if current.Key != workflow.StageClientRejections {
			return nil, workflow.ErrInvalidTransition
		}
		return forwardStep(tx, &book, actor, current, enabled, "Marked as Corrected",
			fmt.Sprintf("Book %q marked as corrected after client rejection.", book.Name), req.Note, nil)

	case ActionResubmit:
		return applyResubmit(tx, &book, actor, current, req)

	case ActionArchive:
		if current.Key != workflow.StageFinalized {
			return nil, workflow.ErrInvalidTransition
		}
		return forwardStep(tx, &book, actor, current, enabled, "Book Archived",
			fmt.Sprintf("Book %q was finalized and archived.", book.Name), req.Note, nil)

	default:
		return nil, workflow.ErrInvalidTransition
	}
}

// forwardStep moves a book to the next enabled stage, merging extra column
// updates, clearing the target role's assignment fields when no assignee is
// carried over, and logging the given action.
func forwardStep(tx *gorm.DB, book *Book, actor *users.User, current workflow.Stage, enabled []workflow.StageKey, action, details, note string, extra map[string]any) (*Book, error) {
	next, ok, err := workflow.NextEnabled(current.Key, enabled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, workflow.ErrInvalidTransition
	}

	updates := map[string]any{"status": next.Status}
	// Fresh assignment pending unless the caller supplied one.
	if next.Role != workflow.RoleNone {
		userCol, _, _ := roleFields(next.Role)
		if _, supplied := extra[userCol]; !supplied {
			clearRoleFields(updates, next.Role)
		}
	}
	for k, v := range extra {
		updates[k] = v
	}

	if err := commitTransition(tx, book, updates, audit.Entry{
		Action:  action,
		Details: withNote(details, note),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

func applyAssign(tx *gorm.DB, book *Book, actor *users.User, current workflow.Stage, enabled []workflow.StageKey, req TransitionRequest) (*Book, error) {
	next, ok, err := workflow.NextEnabled(current.Key, enabled)
	if err != nil {
		return nil, err
	}
	if !ok || next.Role == workflow.RoleNone || next.Role != req.Role || next.Started() {
		return nil, workflow.ErrInvalidTransition
	}

	var assignee users.User
	if err := tx.Preload("Projects").First(&assignee, "id = ?", req.AssigneeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrPermissionDenied
		}
		return nil, err
	}
	// Admins supervise, they do not perform stage work.
	if assignee.Role == users.RoleAdmin || !assignee.HoldsStageRole(req.Role) || !assignee.AuthorizedForProject(book.ProjectID) {
		return nil, workflow.ErrPermissionDenied
	}

	userCol, startCol, endCol := roleFields(req.Role)
	updates := map[string]any{
		"status": next.Status,
		userCol:  assignee.ID,
		startCol: nil,
		endCol:   nil,
	}
	// Handing a book from indexing to QC closes the indexing interval.
	if current.Key == workflow.StageIndexingStarted {
		now := time.Now()
		updates["index_end"] = now
		if book.IndexStart == nil {
			updates["index_start"] = now
		}
	}

	if err := commitTransition(tx, book, updates, audit.Entry{
		Action:  assignAction(req.Role),
		Details: withNote(fmt.Sprintf("Book %q assigned to %s.", book.Name, assignee.Name), req.Note),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

func applyStart(tx *gorm.DB, book *Book, actor *users.User, current workflow.Stage, enabled []workflow.StageKey) (*Book, error) {
	if current.Role == workflow.RoleNone || current.Started() {
		return nil, workflow.ErrInvalidTransition
	}
	queue, _ := workflow.QueueStage(current.Role)
	if current.Key != queue.Key {
		return nil, workflow.ErrInvalidTransition
	}
	next, ok, err := workflow.NextEnabled(current.Key, enabled)
	if err != nil {
		return nil, err
	}
	if !ok || next.Role != current.Role || !next.Started() {
		return nil, workflow.ErrInvalidTransition
	}
	if !actor.HoldsStageRole(current.Role) {
		return nil, workflow.ErrPermissionDenied
	}

	userCol, startCol, _ := roleFields(current.Role)
	assignee := book.AssigneeID(current.Role)
	if assignee != nil && *assignee != actor.ID {
		// Someone else's task.
		return nil, workflow.ErrPermissionDenied
	}

	updates := map[string]any{
		"status": next.Status,
		startCol: time.Now(),
		userCol:  actor.ID,
	}
	guard := tx.Model(&Book{}).
		Where("id = ? AND status = ?", book.ID, book.Status)
	if assignee == nil {
		// First claimer wins; the loser of the race sees zero rows.
		guard = guard.Where(userCol + " IS NULL")
	} else {
		guard = guard.Where(userCol+" = ?", actor.ID)
	}
	res := guard.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, workflow.ErrConflict
	}
	if err := syncPages(tx, book.ID, next.Status); err != nil {
		return nil, err
	}
	label := startAction(current.Role)
	if err := audit.Append(tx, audit.Entry{
		Action:  label,
		Details: fmt.Sprintf("%s process initiated for book %q.", label, book.Name),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

func applyComplete(tx *gorm.DB, book *Book, actor *users.User, current workflow.Stage, enabled []workflow.StageKey, note string) (*Book, error) {
	switch current.Key {
	case workflow.StageScanningStarted:
		// Scan completion creates pages and goes through CompleteScan.
		return nil, workflow.ErrInvalidTransition
	case workflow.StageDelivery, workflow.StagePendingDeliveries:
		// Owned by the delivery batch engine.
		return nil, workflow.ErrInvalidTransition
	case workflow.StageReadyForProcessing, workflow.StageInProcessing:
		// Owned by the processing batch orchestrator.
		return nil, workflow.ErrInvalidTransition
	case workflow.StageClientRejections, workflow.StageCorrected, workflow.StageFinalized, workflow.StageArchive:
		// These exit via mark_corrected, resubmit and archive.
		return nil, workflow.ErrInvalidTransition
	}

	next, ok, err := workflow.NextEnabled(current.Key, enabled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, workflow.ErrInvalidTransition
	}

	if queue, isRole := workflow.QueueStage(current.Role); isRole && current.Key == queue.Key {
		// Queued work is claimed through start. Completing straight out of
		// the queue is only legal when the started stage is disabled.
		if next.Role == current.Role && next.Started() {
			return nil, workflow.ErrInvalidTransition
		}
		if !actor.HoldsStageRole(current.Role) && actor.Role != users.RoleAdmin {
			return nil, workflow.ErrPermissionDenied
		}
	}

	extra := map[string]any{}
	if current.Started() {
		if !actor.HoldsStageRole(current.Role) && actor.Role != users.RoleAdmin {
			return nil, workflow.ErrPermissionDenied
		}
		_, startCol, endCol := roleFields(current.Role)
		now := time.Now()
		extra[endCol] = now
		if started := roleStart(book, current.Role); started == nil {
			extra[startCol] = now
		}
	}
	details := fmt.Sprintf("Book %q moved from %s to %s.", book.Name, current.Status, next.Status)
	return forwardStep(tx, book, actor, current, enabled, completeAction(current), details, note, extra)
}

func applyCancel(tx *gorm.DB, book *Book, actor *users.User, current workflow.Stage) (*Book, error) {
	if !current.Started() {
		return nil, workflow.ErrInvalidTransition
	}
	if !actor.HoldsStageRole(current.Role) && actor.Role != users.RoleAdmin {
		return nil, workflow.ErrPermissionDenied
	}
	queue, _ := workflow.QueueStage(current.Role)
	_, startCol, _ := roleFields(current.Role)
	// Assignment survives a cancel; only the started timestamp clears.
	updates := map[string]any{"status": queue.Status, startCol: nil}

	if err := commitTransition(tx, book, updates, audit.Entry{
		Action:  "Task Cancelled",
		Details: fmt.Sprintf("%s for book %q was cancelled.", current.Status, book.Name),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

// Recovery stages a corrected book may be resubmitted to.
var resubmitTargets = map[workflow.StageKey]bool{
	workflow.StageToScan:     true,
	workflow.StageToIndexing: true,
	workflow.StageDelivery:   true,
}

func applyResubmit(tx *gorm.DB, book *Book, actor *users.User, current workflow.Stage, req TransitionRequest) (*Book, error) {
	if current.Key != workflow.StageCorrected {
		return nil, workflow.ErrInvalidTransition
	}
	target, ok := workflow.ByKey(req.TargetStage)
	if !ok {
		return nil, workflow.ErrUnknownStage
	}
	if !resubmitTargets[target.Key] {
		return nil, workflow.ErrInvalidTransition
	}

	updates := map[string]any{"status": target.Status}
	if target.Role != workflow.RoleNone {
		clearRoleFields(updates, target.Role)
	}
	if err := commitTransition(tx, book, updates, audit.Entry{
		Action:  "Book Resubmitted",
		Details: withNote(fmt.Sprintf("Book %q resubmitted to %s.", book.Name, target.Status), req.Note),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

// Override is the admin escape hatch: a direct status write that bypasses the
// sequence predicate. The reason is mandatory and lands in the audit trail;
// role fields that do not belong to the new stage are cleared.
func Override(tx *gorm.DB, bookID string, actor *users.User, newStatus, reason string) (*Book, error) {
	var book Book
	if err := tx.First(&book, "id = ?", bookID).Error; err != nil {
		return nil, err
	}
	target, ok := workflow.FromStatus(newStatus)
	if !ok {
		return nil, workflow.ErrUnknownStage
	}

	updates := map[string]any{"status": target.Status}
	for _, role := range []workflow.Role{workflow.RoleScanner, workflow.RoleIndexer, workflow.RoleQC} {
		if target.Role != role {
			clearRoleFields(updates, role)
		}
	}
	if err := commitTransition(tx, &book, updates, audit.Entry{
		Action:  "Admin Status Override",
		Details: fmt.Sprintf("Status of %q manually changed to %q. Reason: %s", book.Name, target.Status, reason),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

// Reassign overwrites a role's assignee out of band. Legal only while the
// book sits in that role's queue or started stage; status and timestamps are
// left untouched.
func Reassign(tx *gorm.DB, bookID string, actor *users.User, role workflow.Role, newUserID string) (*Book, error) {
	var book Book
	if err := tx.First(&book, "id = ?", bookID).Error; err != nil {
		return nil, err
	}
	legal := false
	for _, s := range workflow.RoleStatuses(role) {
		if book.Status == s {
			legal = true
		}
	}
	if !legal {
		return nil, workflow.ErrInvalidTransition
	}

	var assignee users.User
	if err := tx.Preload("Projects").First(&assignee, "id = ?", newUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrPermissionDenied
		}
		return nil, err
	}
	if assignee.Role == users.RoleAdmin || !assignee.HoldsStageRole(role) || !assignee.AuthorizedForProject(book.ProjectID) {
		return nil, workflow.ErrPermissionDenied
	}

	userCol, _, _ := roleFields(role)
	res := tx.Model(&Book{}).
		Where("id = ? AND status = ?", book.ID, book.Status).
		Update(userCol, assignee.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, workflow.ErrConflict
	}

	previous := "Unassigned"
	if prev := book.AssigneeID(role); prev != nil {
		var prevUser users.User
		if err := tx.First(&prevUser, "id = ?", *prev).Error; err == nil {
			previous = prevUser.Name
		}
	}
	if err := audit.Append(tx, audit.Entry{
		Action:  "User Reassigned",
		Details: fmt.Sprintf("Task for book %q was reassigned from %s to %s.", book.Name, previous, assignee.Name),
		UserID:  actor.ID,
		BookID:  book.ID,
	}); err != nil {
		return nil, err
	}
	return reload(tx, book.ID)
}

// commitTransition applies a guarded status update, keeps the book's pages on
// the same status, and appends the audit entry. Zero rows affected means the
// book moved underneath us.
func commitTransition(tx *gorm.DB, book *Book, updates map[string]any, entry audit.Entry) error {
	res := tx.Model(&Book{}).
		Where("id = ? AND status = ?", book.ID, book.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.ErrConflict
	}
	if status, ok := updates["status"].(string); ok && status != book.Status {
		if err := syncPages(tx, book.ID, status); err != nil {
			return err
		}
	}
	return audit.Append(tx, entry)
}

func syncPages(tx *gorm.DB, bookID, status string) error {
	return tx.Model(&Page{}).Where("book_id = ?", bookID).Update("status", status).Error
}

func reload(tx *gorm.DB, bookID string) (*Book, error) {
	var book Book
	if err := tx.First(&book, "id = ?", bookID).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func clearRoleFields(updates map[string]any, role workflow.Role) {
	userCol, startCol, endCol := roleFields(role)
	updates[userCol] = nil
	updates[startCol] = nil
	updates[endCol] = nil
}

func roleStart(b *Book, role workflow.Role) *time.Time {
	switch role {
	case workflow.RoleScanner:
		return b.ScanStart
	case workflow.RoleIndexer:
		return b.IndexStart
	case workflow.RoleQC:
		return b.QCStart
	}
	return nil
}

func withNote(details, note string) string {
	if note == "" {
		return details
	}
	return details + " Note: " + note
}

func assignAction(role workflow.Role) string {
	switch role {
	case workflow.RoleScanner:
		return "Assigned to Scanner"
	case workflow.RoleIndexer:
		return "Assigned to Indexer"
	case workflow.RoleQC:
		return "Assigned for QC"
	}
	return "Assigned"
}

func startAction(role workflow.Role) string {
	switch role {
	case workflow.RoleScanner:
		return "Scanning Started"
	case workflow.RoleIndexer:
		return "Indexing Started"
	case workflow.RoleQC:
		return "Checking Started"
	}
	return "Task Started"
}

func completeAction(current workflow.Stage) string {
	switch current.Key {
	case workflow.StageIndexingStarted:
		return "Indexing Finished"
	case workflow.StageCheckingStarted:
		return "Checking Finished"
	}
	return "Workflow Step"
}
