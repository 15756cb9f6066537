package service

import (
	"context"
	"errors"
	"testing"

	"agora_go/internal/pkg/apperr"
)

func TestAllocateTransliterates(t *testing.T) {
	a := NewSlugAllocator(0)

	got, err := a.Allocate("Général", map[string]bool{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "general" {
		t.Errorf("Allocate(Général) = %q, want %q", got, "general")
	}
}

func TestAllocateProbesSuffixes(t *testing.T) {
	a := NewSlugAllocator(0)
	taken := map[string]bool{"general": true}

	got, err := a.Allocate("General", taken)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "general-2" {
		t.Errorf("first collision = %q, want general-2", got)
	}

	taken["general-2"] = true
	got, err = a.Allocate("General", taken)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "general-3" {
		t.Errorf("second collision = %q, want general-3", got)
	}
}

func TestAllocateEmptyName(t *testing.T) {
	a := NewSlugAllocator(0)

	got, err := a.Allocate("!!!", map[string]bool{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "untitled" {
		t.Errorf("Allocate(!!!) = %q, want untitled", got)
	}
}

func TestAllocateExhaustion(t *testing.T) {
	a := NewSlugAllocator(3)
	taken := map[string]bool{"x": true, "x-2": true, "x-3": true}

	_, err := a.Allocate("x", taken)
	if !errors.Is(err, apperr.ErrSlugExhausted) {
		t.Fatalf("err = %v, want ErrSlugExhausted", err)
	}
}

func TestAllocateInsertRetriesOnceOnDuplicate(t *testing.T) {
	a := NewSlugAllocator(0)
	ctx := context.Background()

	// the taken set is stale on the first read: "report" exists by the
	// time the insert runs
	reads := 0
	inserts := 0
	taken := func(ctx context.Context) ([]string, error) {
		reads++
		if reads == 1 {
			return nil, nil
		}
		return []string{"report"}, nil
	}
	insert := func(ctx context.Context, slug string) error {
		inserts++
		if inserts == 1 {
			return errDuplicate
		}
		return nil
	}

	got, err := a.AllocateInsert(ctx, "Report", taken, insert)
	if err != nil {
		t.Fatalf("AllocateInsert: %v", err)
	}
	if got != "report-2" {
		t.Errorf("slug = %q, want report-2 after reallocation", got)
	}
	if reads != 2 || inserts != 2 {
		t.Errorf("reads = %d inserts = %d, want 2 and 2", reads, inserts)
	}
}

func TestAllocateInsertGivesUpAfterSecondDuplicate(t *testing.T) {
	a := NewSlugAllocator(0)
	ctx := context.Background()

	taken := func(ctx context.Context) ([]string, error) { return nil, nil }
	insert := func(ctx context.Context, slug string) error { return errDuplicate }

	_, err := a.AllocateInsert(ctx, "Report", taken, insert)
	if err == nil {
		t.Fatal("expected error after two duplicate-key failures")
	}
}

func TestAllocateDeterministic(t *testing.T) {
	a := NewSlugAllocator(0)
	taken := map[string]bool{"news": true, "news-2": true}

	first, err := a.Allocate("News", taken)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	second, err := a.Allocate("News", taken)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if first != second {
		t.Errorf("same name, same taken set: %q vs %q", first, second)
	}
}
