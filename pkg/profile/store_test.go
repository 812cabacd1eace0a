package profile

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCreateAndFind(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.FindByIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if got != nil {
		t.Fatal("want nil for unknown identity")
	}

	if err := s.Create(ctx, &Profile{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err = s.FindByIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if got == nil || got.Name != "Ana" {
		t.Fatalf("got %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps not stamped")
	}

	// Mutating the returned copy must not leak into the store.
	got.Name = "changed"
	again, _ := s.FindByIdentity(ctx, "u1")
	if again.Name != "Ana" {
		t.Fatalf("store mutated through returned copy: %q", again.Name)
	}
}

func TestMemoryStoreUpdatePreservesCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	ctx := context.Background()

	if err := s.Create(ctx, &Profile{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.now = func() time.Time { return base.Add(time.Hour) }
	if err := s.Update(ctx, &Profile{ID: "u1", Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.FindByIdentity(ctx, "u1")
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("UpdatedAt = %v", got.UpdatedAt)
	}
	if got.Email != "ana@example.com" {
		t.Fatalf("email = %q", got.Email)
	}
}

func TestMemoryStoreUpdateUpsertsMissing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Update(ctx, &Profile{ID: "u2", Name: "Ben"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.FindByIdentity(ctx, "u2")
	if got == nil || got.Name != "Ben" {
		t.Fatalf("got %+v", got)
	}
}

func TestValidateCompleteness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c, err := s.ValidateCompleteness(ctx, "absent")
	if err != nil {
		t.Fatalf("ValidateCompleteness: %v", err)
	}
	if c.IsComplete || len(c.MissingSteps) != 4 {
		t.Fatalf("got %+v", c)
	}

	_ = s.Create(ctx, &Profile{ID: "u1", Name: "Ana", Email: "ana@example.com", Birthdate: "1990-04-12"})
	c, _ = s.ValidateCompleteness(ctx, "u1")
	if c.IsComplete {
		t.Fatal("want incomplete")
	}
	want := map[string]bool{"details": true, "consent": true}
	for _, step := range c.MissingSteps {
		if !want[step] {
			t.Fatalf("unexpected missing step %q", step)
		}
		delete(want, step)
	}
	if len(want) != 0 {
		t.Fatalf("steps not reported: %v", want)
	}

	_ = s.Update(ctx, &Profile{
		ID: "u1", Name: "Ana", Email: "ana@example.com",
		Birthdate: "1990-04-12", Country: "Brazil", ConsentGiven: true,
	})
	c, _ = s.ValidateCompleteness(ctx, "u1")
	if !c.IsComplete || len(c.MissingSteps) != 0 {
		t.Fatalf("got %+v", c)
	}
}
