package database

import (
	"fmt"
	"log"
	"os"

	"flowvault/internal/domain/audit"
	"flowvault/internal/domain/batches"
	"flowvault/internal/domain/books"
	"flowvault/internal/domain/clients"
	"flowvault/internal/domain/projects"
	"flowvault/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("❌ DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}

	DB = db

	if err := Migrate(DB); err != nil {
		log.Fatal("❌ AutoMigrate error:", err)
	}

	fmt.Println("✅ Connected and migrated successfully")
}

// Migrate runs AutoMigrate for every domain model. Tests reuse it against an
// in-memory store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// core
		&users.User{},
		&users.UserProject{},
		&clients.Client{},
		&clients.RejectionTag{},
		&projects.Project{},
		&projects.WorkflowStage{},

		// pipeline
		&books.Book{},
		&books.Page{},
		&batches.ProcessingBatch{},
		&batches.ProcessingBatchItem{},
		&batches.DeliveryBatch{},
		&batches.DeliveryBatchItem{},

		// trail
		&audit.Log{},
	)
}
