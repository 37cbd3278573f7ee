package io

import (
	"bytes"
	"fmt"
	"io"
	"log"
)

const (
	TEXT_COLUMNS = 80 // Character cells per row.
	TEXT_ROWS    = 25 // Rows on the display.
)

// TextGrid is the character cell memory shared by the text displays.
type TextGrid struct {
	Cell  [TEXT_ROWS][TEXT_COLUMNS]uint8
	dirty [TEXT_ROWS]bool
}

// Clear blanks every cell and marks every row for redraw.
func (tg *TextGrid) Clear() {
	for row := range tg.Cell {
		for col := range tg.Cell[row] {
			tg.Cell[row][col] = ' '
		}
		tg.dirty[row] = true
	}
}

// SetRow replaces a full row.
func (tg *TextGrid) SetRow(row int, text []uint8) {
	copy(tg.Cell[row][:], text)
	tg.dirty[row] = true
}

// SetCell replaces a single character cell.
func (tg *TextGrid) SetCell(row, col int, char uint8) {
	tg.Cell[row][col] = char
	tg.dirty[row] = true
}

// Row returns the text of a row.
func (tg *TextGrid) Row(row int) string {
	return string(tg.Cell[row][:])
}

// Render redraws the rows changed since the last call, positioning each
// with an ANSI cursor move. Non-printable cells are drawn as spaces.
func (tg *TextGrid) Render(w io.Writer) (err error) {
	var buf bytes.Buffer

	for row := range tg.Cell {
		if !tg.dirty[row] {
			continue
		}
		fmt.Fprintf(&buf, "\033[%d;1H", row+1)
		for _, char := range tg.Cell[row] {
			if char < 0x20 || char > 0x7e {
				char = ' '
			}
			buf.WriteByte(char)
		}
		tg.dirty[row] = false
	}

	if buf.Len() == 0 {
		return
	}

	_, err = w.Write(buf.Bytes())

	return
}

// pollKey reads one key from a Keyboard, substituting KEY_NONE for an
// idle keyboard or a failing one.
func pollKey(kb Keyboard, verbose bool) (key uint8, ok bool) {
	if kb == nil {
		return KEY_NONE, false
	}

	key, ok, err := kb.PollKey()
	if err != nil {
		if verbose {
			log.Printf("keyboard: %v", err)
		}
		return KEY_NONE, false
	}

	if !ok {
		key = KEY_NONE
	}

	return
}
