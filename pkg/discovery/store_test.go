package discovery

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := ServiceRecord{Name: "executor", URL: "http://executor:8080", Status: StatusHealthy}
	if err := store.Put(ctx, rec, 0); err != nil {
		t.Fatalf("Failed to put record: %v", err)
	}

	got, err := store.Get(ctx, "executor")
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.URL != "http://executor:8080" {
		t.Errorf("Expected http://executor:8080, got %s", got.URL)
	}

	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatal("Expected error for missing record")
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Put(ctx, ServiceRecord{Name: "executor", Status: StatusUnknown}, 0)
	_ = store.Put(ctx, ServiceRecord{Name: "executor", Status: StatusHealthy}, 0)

	got, err := store.Get(ctx, "executor")
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.Status != StatusHealthy {
		t.Errorf("Expected overwritten status healthy, got %s", got.Status)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record after overwrite, got %d", len(records))
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, ServiceRecord{Name: "executor"}, 10*time.Millisecond); err != nil {
		t.Fatalf("Failed to put record: %v", err)
	}
	if _, err := store.Get(ctx, "executor"); err != nil {
		t.Fatalf("Expected record before expiry: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := store.Get(ctx, "executor"); err == nil {
		t.Fatal("Expected record to expire")
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no live records, got %d", len(records))
	}
}
