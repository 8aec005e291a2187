package game

import "fmt"

// RowSelections counts the revealed tiles per row.
type RowSelections [Rows]int

// CanSelect reports whether another tile may be revealed in row.
func (r *RowSelections) CanSelect(row int) bool {
	if row < 0 || row >= Rows {
		return false
	}
	return r[row] < RowQuota
}

// Increment records a reveal in row.
func (r *RowSelections) Increment(row int) error {
	if row < 0 || row >= Rows {
		return fmt.Errorf("%w: row %d", ErrInvalidTile, row)
	}
	if r[row] >= RowQuota {
		return fmt.Errorf("%w: row %d", ErrRowQuotaExceeded, row)
	}
	r[row]++
	return nil
}

// Replace overwrites the counters with the server's values. Missing rows become 0, extra
// entries are ignored and every counter is clamped to [0, RowQuota].
func (r *RowSelections) Replace(authoritative []int) {
	for row := range Rows {
		v := 0
		if row < len(authoritative) {
			v = max(0, min(authoritative[row], RowQuota))
		}
		r[row] = v
	}
}

// Reset zeroes all counters.
func (r *RowSelections) Reset() {
	*r = RowSelections{}
}
