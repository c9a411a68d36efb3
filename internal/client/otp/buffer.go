package otp

import "strings"

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// CodeBuffer is the six-cell code entry: one optional digit per cell and
// a focus cursor.
type CodeBuffer struct {
	cells [CodeLength]byte
	focus int
}

// Focus returns the index of the focused cell.
func (b *CodeBuffer) Focus() int { return b.focus }

// SetFocus moves the cursor, clamped to the buffer.
func (b *CodeBuffer) SetFocus(i int) {
	b.focus = clamp(i)
}

// Input puts digit d into cell i and advances focus to i+1 unless i is
// the last cell. Anything that is not a decimal digit is rejected.
func (b *CodeBuffer) Input(i int, d rune) bool {
	if i < 0 || i >= CodeLength || d < '0' || d > '9' {
		return false
	}
	b.cells[i] = byte(d)
	if i < CodeLength-1 {
		b.focus = i + 1
	} else {
		b.focus = i
	}
	return true
}

// Backspace on cell i clears it when it holds a digit. On an empty cell
// it moves focus to i-1.
func (b *CodeBuffer) Backspace(i int) {
	if i < 0 || i >= CodeLength {
		return
	}
	if b.cells[i] != 0 {
		b.cells[i] = 0
		b.focus = i
		return
	}
	if i > 0 {
		b.focus = i - 1
	}
}

// Paste spreads the digits of s over the cells starting at 0. Non-digit
// characters are dropped and at most CodeLength digits are used. Focus
// lands on the first empty cell, or the last cell when all are filled.
// It returns the number of digits placed.
func (b *CodeBuffer) Paste(s string) int {
	n := 0
	for _, r := range s {
		if n == CodeLength {
			break
		}
		if r < '0' || r > '9' {
			continue
		}
		b.cells[n] = byte(r)
		n++
	}
	if n == 0 {
		return 0
	}
	b.focus = CodeLength - 1
	for i, c := range b.cells {
		if c == 0 {
			b.focus = i
			break
		}
	}
	return n
}

// Complete reports whether every cell holds a digit.
func (b *CodeBuffer) Complete() bool {
	for _, c := range b.cells {
		if c == 0 {
			return false
		}
	}
	return true
}

// Value returns the digits entered so far, skipping empty cells.
func (b *CodeBuffer) Value() string {
	var sb strings.Builder
	for _, c := range b.cells {
		if c != 0 {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Cells returns the per-cell contents; empty cells are "".
func (b *CodeBuffer) Cells() [CodeLength]string {
	var out [CodeLength]string
	for i, c := range b.cells {
		if c != 0 {
			out[i] = string(c)
		}
	}
	return out
}

func (b *CodeBuffer) Clear() {
	*b = CodeBuffer{}
}

func clamp(i int) int {
	return max(0, min(i, CodeLength-1))
}
