// Package translate selects a message printer for the user's locale, used
// for every user visible error string in funemu.
package translate

import (
	"log"
	"sync"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer     *message.Printer
	printerOnce sync.Once
)

// fallback is used when the host reports no usable locale.
var fallback = language.AmericanEnglish

func getPrinter() *message.Printer {
	printerOnce.Do(func() {
		locales, err := locale.GetLocales()
		if err != nil {
			log.Printf("funemu: locale: %v", err)
		}

		if len(locales) == 0 {
			printer = message.NewPrinter(fallback)
			return
		}

		printer = message.NewPrinter(message.MatchLanguage(locales...))
	})

	return printer
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return getPrinter().Sprintf(key, args...)
}
