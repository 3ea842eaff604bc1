package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type row struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseTransaction_UsesCallerTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	ctx := context.Background()

	err := db.Transaction(func(outer *gorm.DB) error {
		if err := base.Transaction(ctx, outer, func(tx *gorm.DB) error {
			return tx.Create(&row{Name: "inner"}).Error
		}); err != nil {
			return err
		}
		return errors.New("abort outer")
	})
	if err == nil {
		t.Fatal("expected outer abort")
	}

	var count int64
	if err := db.Model(&row{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("inner write should roll back with the caller tx, got %d", count)
	}
}

func TestBaseTransaction_OpensOwnTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	err := base.Transaction(context.Background(), nil, func(tx *gorm.DB) error {
		if err := tx.Create(&row{Name: "a"}).Error; err != nil {
			return err
		}
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var count int64
	_ = db.Model(&row{}).Count(&count).Error
	if count != 0 {
		t.Fatalf("expected rollback, got %d", count)
	}
}
