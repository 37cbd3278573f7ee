package io

import (
	"errors"

	"github.com/ezrec/funemu/translate"
)

var f = translate.From

var (
	// Rom errors
	ErrRomTooLarge = errors.New(f("rom larger than 64K"))
	ErrRomRead     = errors.New(f("rom read"))

	// Input source errors
	ErrInputClosed = errors.New(f("input closed"))
)
