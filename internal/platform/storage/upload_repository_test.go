package storage

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&UploadRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestUploadRepository_SaveAndFind(t *testing.T) {
	repo := NewUploadRepository(setupTestDB(t))
	ctx := context.Background()

	record := &UploadRecord{
		RequestID:   "req-123",
		UserID:      "user-1",
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
		Path:        UploadPathDirect,
		Status:      UploadStatusCompleted,
		StatusCode:  200,
	}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	found, err := repo.FindByRequestID(ctx, "req-123")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected record, got nil")
	}
	if found.Filename != "resume.pdf" || found.Path != UploadPathDirect {
		t.Errorf("unexpected record: %+v", found)
	}
}

func TestUploadRepository_FindMissingReturnsNil(t *testing.T) {
	repo := NewUploadRepository(setupTestDB(t))

	found, err := repo.FindByRequestID(context.Background(), "absent")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found != nil {
		t.Errorf("expected nil for missing record, got %+v", found)
	}
}

func TestUploadRepository_ListByUserID(t *testing.T) {
	repo := NewUploadRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		record := &UploadRecord{
			RequestID: fmt.Sprintf("req-%d", i),
			UserID:    "user-1",
			Status:    UploadStatusCompleted,
		}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if err := repo.Save(ctx, &UploadRecord{RequestID: "other", UserID: "user-2"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	records, total, err := repo.ListByUserID(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 15 {
		t.Errorf("expected total 15, got %d", total)
	}
	if len(records) != 10 {
		t.Errorf("expected 10 records, got %d", len(records))
	}

	records, _, err = repo.ListByUserID(ctx, "user-1", 10, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("expected 5 records on second page, got %d", len(records))
	}
}
