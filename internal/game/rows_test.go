package game

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestRowSelectionsNeverExceedQuota(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	var rows RowSelections
	for range 1000 {
		row := rng.IntN(Rows)
		if rows.CanSelect(row) {
			if err := rows.Increment(row); err != nil {
				t.Fatalf("Increment(%d) failed although CanSelect was true: %v", row, err)
			}
		}
		for r, count := range rows {
			if count < 0 || count > RowQuota {
				t.Fatalf("Row %d has %d selections", r, count)
			}
		}
	}
	if rows != (RowSelections{2, 2, 2, 2}) {
		t.Errorf("Expected all rows full after 1000 attempts, got %v", rows)
	}
}

func TestRowSelectionsIncrement(t *testing.T) {
	var rows RowSelections
	for range RowQuota {
		if err := rows.Increment(1); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
	if rows.CanSelect(1) {
		t.Errorf("Row 1 should be full")
	}
	if err := rows.Increment(1); !errors.Is(err, ErrRowQuotaExceeded) {
		t.Errorf("Expected ErrRowQuotaExceeded, got %v", err)
	}
	if rows[1] != RowQuota {
		t.Errorf("Failed increment changed the counter to %d", rows[1])
	}
	if rows.CanSelect(-1) || rows.CanSelect(Rows) {
		t.Errorf("Rows outside the board must not be selectable")
	}
}

func TestRowSelectionsReplace(t *testing.T) {
	rows := RowSelections{1, 1, 1, 1}

	rows.Replace([]int{2, 0, 1, 0})
	if rows != (RowSelections{2, 0, 1, 0}) {
		t.Errorf("Replace should overwrite, got %v", rows)
	}

	// Replacing twice with the same value is not additive.
	rows.Replace([]int{2, 0, 1, 0})
	if rows != (RowSelections{2, 0, 1, 0}) {
		t.Errorf("Replace should not accumulate, got %v", rows)
	}

	rows.Replace([]int{7, -3})
	if rows != (RowSelections{2, 0, 0, 0}) {
		t.Errorf("Expected clamped and zero-filled rows, got %v", rows)
	}

	rows.Reset()
	if rows != (RowSelections{}) {
		t.Errorf("Reset left %v", rows)
	}
}
