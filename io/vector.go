package io

import (
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
)

const (
	VECTOR_BUFFER_SIZE = 128         // Bytes in each command buffer.
	VECTOR_SWAP        = uint16(128) // A write exchanges the command buffers.
	VECTOR_CONTROLLER  = uint16(129) // Controller inputs, read only.
)

// Vector display commands, as decoded by Segments.
const (
	VECTOR_CMD_END  = uint8(0x00) // End of the command list.
	VECTOR_CMD_MOVE = uint8(0x01) // Move the beam: x y.
	VECTOR_CMD_DRAW = uint8(0x02) // Draw to: x y.
)

// Segment is a line drawn by the vector display.
type Segment struct {
	X0, Y0 uint8
	X1, Y1 uint8
}

// Vector is a double buffered vector display command device with a game
// controller. The CPU builds the next command list at addresses
// 0..VECTOR_BUFFER_SIZE-1 while the display consumes the previous one; a
// write to VECTOR_SWAP exchanges the two. Reads of the command addresses
// return the list the display currently owns.
type Vector struct {
	Memory

	Verbose    bool
	Controller Controller // Source of VECTOR_CONTROLLER, may be nil.

	front *[VECTOR_BUFFER_SIZE]uint8 // Owned by the display.
	back  *[VECTOR_BUFFER_SIZE]uint8 // Owned by the CPU.
	Swaps int                        // Number of swaps since reset.
}

var _ Device = (*Vector)(nil)
var _ Renderer = (*Vector)(nil)

// NewVector creates a vector device reading inputs from ctl.
func NewVector(ctl Controller) (vec *Vector) {
	vec = &Vector{Controller: ctl}
	vec.Reset()
	return
}

// Defines returns the device addresses.
func (vec *Vector) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"VECTOR_BUFFER_SIZE": fmt.Sprintf("%v", VECTOR_BUFFER_SIZE),
		"VECTOR_SWAP":        fmt.Sprintf("%#x", VECTOR_SWAP),
		"VECTOR_CONTROLLER":  fmt.Sprintf("%#x", VECTOR_CONTROLLER),
		"VECTOR_CMD_END":     fmt.Sprintf("%#x", VECTOR_CMD_END),
		"VECTOR_CMD_MOVE":    fmt.Sprintf("%#x", VECTOR_CMD_MOVE),
		"VECTOR_CMD_DRAW":    fmt.Sprintf("%#x", VECTOR_CMD_DRAW),
		"PAD_UP":             fmt.Sprintf("%#x", CONTROLLER_UP),
		"PAD_DOWN":           fmt.Sprintf("%#x", CONTROLLER_DOWN),
		"PAD_LEFT":           fmt.Sprintf("%#x", CONTROLLER_LEFT),
		"PAD_RIGHT":          fmt.Sprintf("%#x", CONTROLLER_RIGHT),
		"PAD_A":              fmt.Sprintf("%#x", CONTROLLER_A),
		"PAD_B":              fmt.Sprintf("%#x", CONTROLLER_B),
		"PAD_START":          fmt.Sprintf("%#x", CONTROLLER_START),
		"PAD_SELECT":         fmt.Sprintf("%#x", CONTROLLER_SELECT),
	})
}

// Reset clears memory and both command buffers.
func (vec *Vector) Reset() {
	vec.Memory.Reset()
	vec.front = &[VECTOR_BUFFER_SIZE]uint8{}
	vec.back = &[VECTOR_BUFFER_SIZE]uint8{}
	vec.Swaps = 0
}

// Swap exchanges ownership of the command buffers.
func (vec *Vector) Swap() {
	vec.front, vec.back = vec.back, vec.front
	vec.Swaps++
}

// Commands returns the command list owned by the display.
func (vec *Vector) Commands() []uint8 {
	return vec.front[:]
}

// Read returns the display owned command list, or the controller inputs.
func (vec *Vector) Read(address uint16) uint8 {
	switch {
	case address < VECTOR_BUFFER_SIZE:
		return vec.front[address]
	case address == VECTOR_CONTROLLER:
		return vec.pollController()
	}

	return vec.Memory.Read(address)
}

// Write fills the CPU owned command list, or swaps the lists.
func (vec *Vector) Write(address uint16, data uint8) {
	switch {
	case address < VECTOR_BUFFER_SIZE:
		vec.back[address] = data
		return
	case address == VECTOR_SWAP:
		vec.Swap()
	}

	vec.Memory.Write(address, data)
}

func (vec *Vector) pollController() uint8 {
	if vec.Controller == nil {
		return 0
	}

	state, err := vec.Controller.Poll()
	if err != nil {
		if vec.Verbose {
			log.Printf("vector: controller: %v", err)
		}
		return 0
	}

	return state.Byte()
}

// Segments decodes the display owned command list. Unknown commands end
// the list, as does a command truncated by the end of the buffer.
func (vec *Vector) Segments() iter.Seq[Segment] {
	cmds := vec.Commands()

	return func(yield func(seg Segment) bool) {
		var x, y uint8
		for n := 0; n+2 < len(cmds); n += 3 {
			nx, ny := cmds[n+1], cmds[n+2]
			switch cmds[n] {
			case VECTOR_CMD_MOVE:
				// pass
			case VECTOR_CMD_DRAW:
				if !yield(Segment{X0: x, Y0: y, X1: nx, Y1: ny}) {
					return
				}
			default:
				return
			}
			x, y = nx, ny
		}
	}
}

// Render writes the display owned command list as an SVG document.
func (vec *Vector) Render(w io.Writer) (err error) {
	_, err = fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 256 256">`+"\n")
	if err != nil {
		return
	}

	for seg := range vec.Segments() {
		_, err = fmt.Fprintf(w, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`+"\n",
			seg.X0, seg.Y0, seg.X1, seg.Y1)
		if err != nil {
			return
		}
	}

	_, err = fmt.Fprintf(w, "</svg>\n")

	return
}
