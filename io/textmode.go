package io

import (
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
)

const (
	TEXTMODE_ROW    = uint16(0)    // Row select; a write copies the row buffer into the grid.
	TEXTMODE_KEY    = uint16(2)    // Last key pressed, read only.
	TEXTMODE_BUFFER = uint16(6400) // Start of the row buffer.
)

// TextMode is an 80x25 text display updated one full row at a time.
// Programs fill the row buffer in RAM, then write the row number to
// TEXTMODE_ROW. Writes to the row buffer alone do not reach the display.
type TextMode struct {
	Memory
	TextGrid

	Verbose  bool
	Keyboard Keyboard // Source of TEXTMODE_KEY, may be nil.

	row uint8
}

var _ Device = (*TextMode)(nil)
var _ Renderer = (*TextMode)(nil)

// NewTextMode creates a blank display reading keys from kb.
func NewTextMode(kb Keyboard) (tm *TextMode) {
	tm = &TextMode{Keyboard: kb}
	tm.Reset()
	return
}

// Defines returns the display addresses.
func (tm *TextMode) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"TEXT_ROW":     fmt.Sprintf("%#x", TEXTMODE_ROW),
		"TEXT_KEY":     fmt.Sprintf("%#x", TEXTMODE_KEY),
		"TEXT_BUFFER":  fmt.Sprintf("%#x", TEXTMODE_BUFFER),
		"TEXT_COLUMNS": fmt.Sprintf("%v", TEXT_COLUMNS),
		"TEXT_ROWS":    fmt.Sprintf("%v", TEXT_ROWS),
	})
}

// Reset clears memory and the display.
func (tm *TextMode) Reset() {
	tm.Memory.Reset()
	tm.TextGrid.Clear()
	tm.row = 0
}

// SelectedRow returns the last row number written to TEXTMODE_ROW.
func (tm *TextMode) SelectedRow() uint8 {
	return tm.row
}

// Read polls the keyboard at TEXTMODE_KEY.
func (tm *TextMode) Read(address uint16) uint8 {
	if address == TEXTMODE_KEY {
		key, ok := pollKey(tm.Keyboard, tm.Verbose)
		if ok {
			tm.Memory.Write(TEXTMODE_KEY, key)
		}
		return key
	}

	return tm.Memory.Read(address)
}

// Write snapshots the row buffer into the grid on a write to TEXTMODE_ROW.
// Out of range rows are remembered but do not touch the display.
func (tm *TextMode) Write(address uint16, data uint8) {
	tm.Memory.Write(address, data)

	if address != TEXTMODE_ROW {
		return
	}

	tm.row = data
	if int(data) >= TEXT_ROWS {
		if tm.Verbose {
			log.Printf("textmode: row %d out of range", data)
		}
		return
	}

	tm.TextGrid.SetRow(int(data), tm.Memory[TEXTMODE_BUFFER:TEXTMODE_BUFFER+TEXT_COLUMNS])
}

// Render redraws the changed rows.
func (tm *TextMode) Render(w io.Writer) error {
	return tm.TextGrid.Render(w)
}
