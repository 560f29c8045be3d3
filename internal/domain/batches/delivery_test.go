package batches_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"flowvault/database"
	"flowvault/internal/domain/batches"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/clients"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"
	"flowvault/internal/domain/workflow"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	db         *gorm.DB
	client     clients.Client
	project    projects.Project
	admin      users.User
	validator1 users.User
	validator2 users.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db}

	f.client = clients.Client{Name: "County Records"}
	require.NoError(t, db.Create(&f.client).Error)
	f.project = projects.Project{ClientID: f.client.ID, Name: "Minutes"}
	require.NoError(t, db.Create(&f.project).Error)

	f.admin = users.User{Name: "Ada", Username: "ada", Role: users.RoleAdmin}
	require.NoError(t, db.Create(&f.admin).Error)
	f.validator1 = users.User{Name: "Vera", Username: "vera", Role: users.RoleClient, ClientID: &f.client.ID}
	f.validator2 = users.User{Name: "Vito", Username: "vito", Role: users.RoleClient, ClientID: &f.client.ID}
	require.NoError(t, db.Create(&f.validator1).Error)
	require.NoError(t, db.Create(&f.validator2).Error)
	return f
}

func (f *fixture) makeBooks(t *testing.T, n int, status string) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		b := books.Book{
			ProjectID: f.project.ID,
			ClientID:  f.client.ID,
			Name:      fmt.Sprintf("Vol. %d", i+1),
			Status:    status,
		}
		require.NoError(t, f.db.Create(&b).Error)
		ids[i] = b.ID
	}
	return ids
}

func (f *fixture) bookStatus(t *testing.T, id string) string {
	t.Helper()
	var b books.Book
	require.NoError(t, f.db.First(&b, "id = ?", id).Error)
	return b.Status
}

func (f *fixture) createDelivery(t *testing.T, ids []string) *batches.DeliveryBatch {
	t.Helper()
	var batch *batches.DeliveryBatch
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.CreateDelivery(tx, &f.admin, f.client.ID, ids, "")
		return err
	})
	require.NoError(t, err)
	return batch
}

func (f *fixture) distribute(t *testing.T, id string, percent int, validators []string) (*batches.DeliveryBatch, error) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	var batch *batches.DeliveryBatch
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.Distribute(tx, &f.admin, id, percent, validators, rng)
		return err
	})
	return batch, err
}

func TestCreateDeliveryParksBooks(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 3, "Delivery")

	batch := f.createDelivery(t, ids)
	assert.Equal(t, batches.DeliveryReady, batch.Status)
	assert.Equal(t, f.client.ID, batch.ClientID)
	require.Len(t, batch.Items, 3)
	for _, item := range batch.Items {
		assert.Equal(t, batches.DecisionPending, item.Status)
		assert.Nil(t, item.AssignedUserID)
	}
	for _, id := range ids {
		assert.Equal(t, "Pending Validation", f.bookStatus(t, id))
	}
}

func TestCreateDeliveryRejectsWrongState(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 2, "Delivery")
	stray := f.makeBooks(t, 1, "Storage")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := batches.CreateDelivery(tx, &f.admin, f.client.ID, append(ids, stray...), "")
		return err
	})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// The failed transaction must not have moved the valid books.
	assert.Equal(t, "Delivery", f.bookStatus(t, ids[0]))
}

func TestCreateDeliveryRejectsForeignBooks(t *testing.T) {
	f := newFixture(t)
	other := clients.Client{Name: "Other Org"}
	require.NoError(t, f.db.Create(&other).Error)
	ids := f.makeBooks(t, 1, "Delivery")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := batches.CreateDelivery(tx, &f.admin, other.ID, ids, "")
		return err
	})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)
}

func TestDistributeSamplesCeilShare(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 10, "Delivery")
	batch := f.createDelivery(t, ids)

	// 25% of 10 rounds up to 3, dealt round-robin over two validators.
	got, err := f.distribute(t, batch.ID, 25, []string{f.validator1.ID, f.validator2.ID})
	require.NoError(t, err)
	assert.Equal(t, batches.DeliveryValidating, got.Status)

	perValidator := map[string]int{}
	assigned := 0
	for _, item := range got.Items {
		if item.AssignedUserID != nil {
			assigned++
			perValidator[*item.AssignedUserID]++
		}
	}
	assert.Equal(t, 3, assigned)
	assert.Equal(t, 2, perValidator[f.validator1.ID])
	assert.Equal(t, 1, perValidator[f.validator2.ID])
}

func TestDistributeFullSample(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 4, "Delivery")
	batch := f.createDelivery(t, ids)

	got, err := f.distribute(t, batch.ID, 100, []string{f.validator1.ID})
	require.NoError(t, err)
	for _, item := range got.Items {
		require.NotNil(t, item.AssignedUserID)
		assert.Equal(t, f.validator1.ID, *item.AssignedUserID)
	}
}

func TestDistributeRejectsOutOfRangePercent(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 3, "Delivery")
	batch := f.createDelivery(t, ids)

	_, err := f.distribute(t, batch.ID, 0, []string{f.validator1.ID})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.distribute(t, batch.ID, 101, []string{f.validator1.ID})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	var got batches.DeliveryBatch
	require.NoError(t, f.db.First(&got, "id = ?", batch.ID).Error)
	assert.Equal(t, batches.DeliveryReady, got.Status)
}

func TestDistributeRequiresReadyBatch(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 2, "Delivery")
	batch := f.createDelivery(t, ids)

	_, err := f.distribute(t, batch.ID, 50, []string{f.validator1.ID})
	require.NoError(t, err)

	_, err = f.distribute(t, batch.ID, 50, []string{f.validator1.ID})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestDistributeRejectsForeignValidators(t *testing.T) {
	f := newFixture(t)
	outsider := users.User{Name: "Oz", Username: "oz", Role: users.RoleClient}
	require.NoError(t, f.db.Create(&outsider).Error)

	ids := f.makeBooks(t, 2, "Delivery")
	batch := f.createDelivery(t, ids)

	_, err := f.distribute(t, batch.ID, 50, []string{outsider.ID})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)
}

func (f *fixture) decide(t *testing.T, actor *users.User, itemID, decision, reason string) error {
	t.Helper()
	return f.db.Transaction(func(tx *gorm.DB) error {
		_, err := batches.DecideItem(tx, actor, itemID, decision, reason)
		return err
	})
}

func validatingBatch(t *testing.T, f *fixture, n int) *batches.DeliveryBatch {
	t.Helper()
	ids := f.makeBooks(t, n, "Delivery")
	batch := f.createDelivery(t, ids)
	got, err := f.distribute(t, batch.ID, 100, []string{f.validator1.ID})
	require.NoError(t, err)
	return got
}

func TestDecideItem(t *testing.T) {
	f := newFixture(t)
	batch := validatingBatch(t, f, 2)

	require.NoError(t, f.decide(t, &f.validator1, batch.Items[0].ID, batches.DecisionApproved, ""))
	require.NoError(t, f.decide(t, &f.validator1, batch.Items[1].ID, batches.DecisionRejected, "page 12 unreadable"))

	var book books.Book
	require.NoError(t, f.db.First(&book, "id = ?", batch.Items[1].BookID).Error)
	require.NotNil(t, book.RejectionReason)
	assert.Equal(t, "page 12 unreadable", *book.RejectionReason)
	// Status resolves at finalization, not per verdict.
	assert.Equal(t, "Pending Validation", book.Status)
}

func TestDecideItemGuards(t *testing.T) {
	f := newFixture(t)
	batch := validatingBatch(t, f, 1)
	item := batch.Items[0].ID

	// Only the assigned validator decides.
	err := f.decide(t, &f.validator2, item, batches.DecisionApproved, "")
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)

	// Rejection without a reason is useless to the correction team.
	err = f.decide(t, &f.validator1, item, batches.DecisionRejected, "")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// A verdict is final.
	require.NoError(t, f.decide(t, &f.validator1, item, batches.DecisionApproved, ""))
	err = f.decide(t, &f.validator1, item, batches.DecisionRejected, "changed my mind")
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

func (f *fixture) finalize(t *testing.T, id, mode string) (*batches.DeliveryBatch, error) {
	t.Helper()
	var batch *batches.DeliveryBatch
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = batches.FinalizeDelivery(tx, &f.admin, id, mode)
		return err
	})
	return batch, err
}

func TestFinalizeApproveRemaining(t *testing.T) {
	f := newFixture(t)
	batch := validatingBatch(t, f, 3)

	require.NoError(t, f.decide(t, &f.validator1, batch.Items[0].ID, batches.DecisionApproved, ""))
	require.NoError(t, f.decide(t, &f.validator1, batch.Items[1].ID, batches.DecisionRejected, "torn cover"))
	// Items[2] stays pending and gets auto-approved.

	got, err := f.finalize(t, batch.ID, batches.FinalizeApproveRemaining)
	require.NoError(t, err)
	assert.Equal(t, batches.DeliveryDelivered, got.Status)
	assert.NotNil(t, got.DeliveryDate)

	assert.Equal(t, "Finalized", f.bookStatus(t, batch.Items[0].BookID))
	assert.Equal(t, "Client Rejected", f.bookStatus(t, batch.Items[1].BookID))
	assert.Equal(t, "Finalized", f.bookStatus(t, batch.Items[2].BookID))

	for _, item := range got.Items {
		assert.NotEqual(t, batches.DecisionPending, item.Status)
	}
}

func TestFinalizeRejectAll(t *testing.T) {
	f := newFixture(t)
	batch := validatingBatch(t, f, 2)
	require.NoError(t, f.decide(t, &f.validator1, batch.Items[0].ID, batches.DecisionApproved, ""))

	got, err := f.finalize(t, batch.ID, batches.FinalizeRejectAll)
	require.NoError(t, err)
	assert.Equal(t, batches.DeliveryDelivered, got.Status)

	// reject_all overrides even explicit approvals.
	for _, item := range got.Items {
		assert.Equal(t, batches.DecisionRejected, item.Status)
		assert.Equal(t, "Client Rejected", f.bookStatus(t, item.BookID))
	}
}

func TestFinalizeIsOneShot(t *testing.T) {
	f := newFixture(t)
	batch := validatingBatch(t, f, 1)

	_, err := f.finalize(t, batch.ID, batches.FinalizeApproveRemaining)
	require.NoError(t, err)

	_, err = f.finalize(t, batch.ID, batches.FinalizeApproveRemaining)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestFinalizeRequiresValidatingBatch(t *testing.T) {
	f := newFixture(t)
	ids := f.makeBooks(t, 1, "Delivery")
	batch := f.createDelivery(t, ids)

	_, err := f.finalize(t, batch.ID, batches.FinalizeApproveRemaining)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.finalize(t, batch.ID, "split_the_difference")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}
