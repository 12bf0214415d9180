package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCopySemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := NewRecord(Params{Topic: "t", Domain: "d", Goal: "g", NumChapters: 5, Tier: "draft"})
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("caller mutation does not leak in", func(t *testing.T) {
		rec.Message = "mutated by caller"
		rec.AppendLog(time.Now(), "rogue entry")

		got, err := store.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Message == "mutated by caller" {
			t.Error("store shares memory with the record passed to Create")
		}
		if len(got.Logs) != 0 {
			t.Error("store shares log slice with the record passed to Create")
		}
	})

	t.Run("returned snapshot does not leak out", func(t *testing.T) {
		first, err := store.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		first.Progress = 99

		second, err := store.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if second.Progress == 99 {
			t.Error("store shares memory with returned snapshots")
		}
	})
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := NewRecord(Params{Topic: "t", Domain: "d", Goal: "g"})
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("failed mutation leaves record untouched", func(t *testing.T) {
		boom := errors.New("nope")
		_, err := store.Update(ctx, rec.ID, func(r *Record) error {
			r.Progress = 55
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected mutation error, got %v", err)
		}
		got, _ := store.Get(ctx, rec.ID)
		if got.Progress != 0 {
			t.Errorf("failed mutation modified stored record: progress=%d", got.Progress)
		}
	})

	t.Run("successful mutation persists", func(t *testing.T) {
		updated, err := store.Update(ctx, rec.ID, func(r *Record) error {
			r.Progress = 42
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Progress != 42 {
			t.Errorf("expected progress 42, got %d", updated.Progress)
		}
		got, _ := store.Get(ctx, rec.ID)
		if got.Progress != 42 {
			t.Errorf("expected stored progress 42, got %d", got.Progress)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Update(ctx, "missing", func(r *Record) error { return nil })
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := NewRecord(Params{Topic: "t", Domain: "d", Goal: "g"})
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	out, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	for i := 0; i < len(out)-1; i++ {
		if out[i].CreatedAt.Before(out[i+1].CreatedAt) {
			t.Error("expected newest-first ordering")
		}
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid v4", "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", false},
		{"empty", "", true},
		{"not a uuid", "job-123", true},
		{"uuid v1", "f47ac10b-58cc-1372-a567-0e02b2c3d479", true},
		{"sql injection shape", "'; DROP TABLE jobs;--", true},
		// Alternate encodings uuid.Parse tolerates; only canonical passes.
		{"urn encoding", "urn:uuid:a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", true},
		{"braced encoding", "{a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d}", true},
		{"bare hex", "a1b2c3d4e5f64a7b8c9d0e1f2a3b4c5d", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidID) {
				t.Errorf("expected ErrInvalidID, got %v", err)
			}
		})
	}
}
