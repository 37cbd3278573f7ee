package io

import (
	"bufio"
	"errors"
	"io"
)

// LoadRom copies a flat binary image onto the bus, byte i at address i.
// Images larger than the bus are rejected before anything is written.
func LoadRom(bus Bus, rom io.Reader) (n int, err error) {
	data, err := io.ReadAll(io.LimitReader(bufio.NewReader(rom), BUS_SIZE+1))
	if err != nil {
		err = errors.Join(ErrRomRead, err)
		return
	}

	if len(data) > BUS_SIZE {
		err = ErrRomTooLarge
		return
	}

	for addr, value := range data {
		bus.Write(uint16(addr), value)
	}

	n = len(data)

	return
}
