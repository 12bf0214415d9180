package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(NewMemoryStore(), DefaultLimits(), nil)
}

func validParams() Params {
	return Params{
		Topic:  "Distributed consensus",
		Domain: "computer science",
		Goal:   "An approachable introduction for working engineers",
	}
}

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	t.Run("valid params", func(t *testing.T) {
		rec, err := reg.Create(ctx, validParams())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := ValidateID(rec.ID); err != nil {
			t.Errorf("expected UUIDv4 job id, got %q", rec.ID)
		}
		if rec.Status != StagePending {
			t.Errorf("expected status pending, got %s", rec.Status)
		}
		if rec.Progress != 0 {
			t.Errorf("expected progress 0, got %d", rec.Progress)
		}
		if rec.Params.NumChapters != 10 {
			t.Errorf("expected default 10 chapters, got %d", rec.Params.NumChapters)
		}
		if rec.Params.Tier != "standard" {
			t.Errorf("expected default tier standard, got %q", rec.Params.Tier)
		}
	})

	t.Run("validation reports all problems", func(t *testing.T) {
		_, err := reg.Create(ctx, Params{
			Topic:       "",
			Domain:      strings.Repeat("x", 101),
			Goal:        "read",
			NumChapters: 99,
			Tier:        "platinum",
		})
		if err == nil {
			t.Fatal("expected validation error")
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %T", err)
		}
		if len(verr.Problems) != 4 {
			t.Errorf("expected 4 problems, got %d: %v", len(verr.Problems), verr.Problems)
		}
	})

	t.Run("whitespace-only topic rejected", func(t *testing.T) {
		p := validParams()
		p.Topic = "   "
		if _, err := reg.Create(ctx, p); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestRegistryAdvance(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Create(ctx, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("happy path through all stages", func(t *testing.T) {
		progress := 0
		for _, next := range Stages()[1:] {
			progress += 5
			got, err := reg.Advance(ctx, rec.ID, next, progress, "working", "")
			if err != nil {
				t.Fatalf("advance to %s: %v", next, err)
			}
			if got.Status != next {
				t.Errorf("expected status %s, got %s", next, got.Status)
			}
		}
		got, err := reg.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Progress != 100 {
			t.Errorf("expected completed job at progress 100, got %d", got.Progress)
		}
	})

	t.Run("terminal record is immutable", func(t *testing.T) {
		_, err := reg.Advance(ctx, rec.ID, StageResearching, 10, "again", "")
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if _, err := reg.Fail(ctx, rec.ID, "boom"); !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError from Fail, got %v", err)
		}
	})
}

func TestRegistryAdvanceRejections(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Create(ctx, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := reg.Advance(ctx, rec.ID, StageResearching, 20, "working", ""); err != nil {
		t.Fatalf("advance: %v", err)
	}

	t.Run("skipping a stage", func(t *testing.T) {
		_, err := reg.Advance(ctx, rec.ID, StagePlanning, 30, "skip", "")
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("progress regression", func(t *testing.T) {
		_, err := reg.Advance(ctx, rec.ID, StageGeneratingVision, 10, "backwards", "")
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("progress out of range", func(t *testing.T) {
		if _, err := reg.Advance(ctx, rec.ID, StageGeneratingVision, 120, "too much", ""); err == nil {
			t.Fatal("expected error for progress > 100")
		}
		if _, err := reg.Advance(ctx, rec.ID, StageGeneratingVision, -1, "negative", ""); err == nil {
			t.Fatal("expected error for negative progress")
		}
	})

	t.Run("unknown stage", func(t *testing.T) {
		if _, err := reg.Advance(ctx, rec.ID, Stage("polishing"), 30, "", ""); err == nil {
			t.Fatal("expected error for unknown stage")
		}
	})

	t.Run("rejected advance leaves record untouched", func(t *testing.T) {
		got, err := reg.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != StageResearching || got.Progress != 20 {
			t.Errorf("record changed by rejected advance: status=%s progress=%d", got.Status, got.Progress)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := reg.Advance(ctx, "11111111-2222-4333-8444-555555555555", StageResearching, 10, "", "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRegistryFail(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Create(ctx, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, next := range []Stage{StageResearching, StageGeneratingVision, StageGeneratingOutline} {
		if _, err := reg.Advance(ctx, rec.ID, next, 0, "working", ""); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	got, err := reg.Fail(ctx, rec.ID, "model quota exhausted")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if got.Status != StageFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
	if got.Error != "model quota exhausted" {
		t.Errorf("expected error message preserved, got %q", got.Error)
	}
	if len(got.Logs) == 0 {
		t.Error("expected a failure log entry")
	}
}

func TestRegistryRequestCancel(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Create(ctx, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("marks intent", func(t *testing.T) {
		got, err := reg.RequestCancel(ctx, rec.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if !got.CancelRequested {
			t.Error("expected cancel_requested set")
		}
		// Cancel is intent only; the job keeps its stage until the
		// pipeline reports failure or completion.
		if got.Status != StagePending {
			t.Errorf("expected status unchanged, got %s", got.Status)
		}
	})

	t.Run("no-op on terminal job", func(t *testing.T) {
		if _, err := reg.Fail(ctx, rec.ID, "cancelled"); err != nil {
			t.Fatalf("fail: %v", err)
		}
		before, _ := reg.Get(ctx, rec.ID)
		got, err := reg.RequestCancel(ctx, rec.ID)
		if err != nil {
			t.Fatalf("cancel on terminal: %v", err)
		}
		if !got.UpdatedAt.Equal(before.UpdatedAt) {
			t.Error("terminal record must not change on cancel")
		}
	})
}

func TestRegistrySetArtifact(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	rec, err := reg.Create(ctx, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := reg.SetArtifact(ctx, rec.ID, "Consensus Explained", "/data/books/consensus.pdf")
	if err != nil {
		t.Fatalf("set artifact: %v", err)
	}
	if got.BookName != "Consensus Explained" || got.ArtifactPath != "/data/books/consensus.pdf" {
		t.Errorf("artifact fields not recorded: %+v", got)
	}

	if _, err := reg.Fail(ctx, rec.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := reg.SetArtifact(ctx, rec.ID, "x", "y"); err == nil {
		t.Fatal("expected error setting artifact on terminal job")
	}
}
