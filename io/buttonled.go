package io

import (
	"fmt"
	"io"
	"iter"
	"maps"
)

const (
	BUTTONLED_LED    = uint16(0) // LED latch, write only.
	BUTTONLED_BUTTON = uint16(1) // Button state, read only.
)

// ButtonLed is a single push button and a bank of eight LEDs.
type ButtonLed struct {
	Memory

	Button bool  // Set by the host when the button is held.
	Led    uint8 // Last value latched at BUTTONLED_LED.
}

var _ Device = (*ButtonLed)(nil)
var _ Renderer = (*ButtonLed)(nil)

// NewButtonLed creates a button and LED panel with everything off.
func NewButtonLed() *ButtonLed {
	return &ButtonLed{}
}

// Defines returns the panel addresses.
func (bl *ButtonLed) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"LED":    fmt.Sprintf("%#x", BUTTONLED_LED),
		"BUTTON": fmt.Sprintf("%#x", BUTTONLED_BUTTON),
	})
}

// Reset turns off the LEDs and clears memory.
func (bl *ButtonLed) Reset() {
	bl.Memory.Reset()
	bl.Led = 0
}

// Read returns 1 at BUTTONLED_BUTTON while the button is held.
func (bl *ButtonLed) Read(address uint16) uint8 {
	if address == BUTTONLED_BUTTON {
		if bl.Button {
			return 1
		}
		return 0
	}

	return bl.Memory.Read(address)
}

// Write latches the LEDs at BUTTONLED_LED, and stores every byte.
func (bl *ButtonLed) Write(address uint16, data uint8) {
	if address == BUTTONLED_LED {
		bl.Led = data
	}

	bl.Memory.Write(address, data)
}

// Render draws the LEDs, most significant first.
func (bl *ButtonLed) Render(w io.Writer) (err error) {
	leds := make([]byte, 8)
	for n := range 8 {
		leds[n] = '.'
		if bl.Led&(0x80>>n) != 0 {
			leds[n] = '*'
		}
	}

	_, err = fmt.Fprintf(w, "\rled [%s]", leds)
	return
}
