package io

import (
	"fmt"
	"io"
	"iter"
	"maps"
)

const (
	CELLTEXT_CHAR     = uint16(0) // Character to place at the cursor.
	CELLTEXT_CURSOR_X = uint16(1) // Cursor column.
	CELLTEXT_CURSOR_Y = uint16(2) // Cursor row.
	CELLTEXT_KEY      = uint16(3) // Last key pressed, read only.
)

// CellText is an 80x25 text display addressed one cell at a time.
// Writing CELLTEXT_CHAR places the character under the cursor and moves
// the cursor right, wrapping at the end of each row and of the screen.
type CellText struct {
	Memory
	TextGrid

	Verbose  bool
	Keyboard Keyboard // Source of CELLTEXT_KEY, may be nil.

	X, Y int // Cursor position.
}

var _ Device = (*CellText)(nil)
var _ Renderer = (*CellText)(nil)

// NewCellText creates a blank display reading keys from kb.
func NewCellText(kb Keyboard) (ct *CellText) {
	ct = &CellText{Keyboard: kb}
	ct.Reset()
	return
}

// Defines returns the display addresses.
func (ct *CellText) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"TEXT_CHAR":     fmt.Sprintf("%#x", CELLTEXT_CHAR),
		"TEXT_CURSOR_X": fmt.Sprintf("%#x", CELLTEXT_CURSOR_X),
		"TEXT_CURSOR_Y": fmt.Sprintf("%#x", CELLTEXT_CURSOR_Y),
		"TEXT_KEY":      fmt.Sprintf("%#x", CELLTEXT_KEY),
		"TEXT_COLUMNS":  fmt.Sprintf("%v", TEXT_COLUMNS),
		"TEXT_ROWS":     fmt.Sprintf("%v", TEXT_ROWS),
	})
}

// Reset clears memory, the display, and homes the cursor.
func (ct *CellText) Reset() {
	ct.Memory.Reset()
	ct.TextGrid.Clear()
	ct.X = 0
	ct.Y = 0
}

// Read returns the cursor position, or polls the keyboard.
func (ct *CellText) Read(address uint16) uint8 {
	switch address {
	case CELLTEXT_CURSOR_X:
		return uint8(ct.X)
	case CELLTEXT_CURSOR_Y:
		return uint8(ct.Y)
	case CELLTEXT_KEY:
		key, ok := pollKey(ct.Keyboard, ct.Verbose)
		if ok {
			ct.Memory.Write(CELLTEXT_KEY, key)
		}
		return key
	}

	return ct.Memory.Read(address)
}

// Write updates the cursor, or places a character.
func (ct *CellText) Write(address uint16, data uint8) {
	switch address {
	case CELLTEXT_CHAR:
		ct.TextGrid.SetCell(ct.Y, ct.X, data)
		ct.advance()
	case CELLTEXT_CURSOR_X:
		ct.X = min(int(data), TEXT_COLUMNS-1)
	case CELLTEXT_CURSOR_Y:
		ct.Y = min(int(data), TEXT_ROWS-1)
	}

	ct.Memory.Write(address, data)
}

func (ct *CellText) advance() {
	ct.X++
	if ct.X < TEXT_COLUMNS {
		return
	}

	ct.X = 0
	ct.Y++
	if ct.Y == TEXT_ROWS {
		ct.Y = 0
	}
}

// Render redraws the changed rows.
func (ct *CellText) Render(w io.Writer) error {
	return ct.TextGrid.Render(w)
}
