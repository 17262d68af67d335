// Package currency derives a statement currency from extraction output and
// filename heuristics.
package currency

import (
	"strings"
	"unicode"
)

// DefaultCurrency is the baseline code used when nothing else indicates
// otherwise.
const DefaultCurrency = "USD"

// japaneseBanks are filename substrings of banks whose statements are
// reliably JPY-denominated. Matched case-insensitively.
var japaneseBanks = []string{
	"mufg",
	"smbc",
	"mizuho",
	"resona",
	"yucho",
	"japanpost",
	"rakuten",
	"shinsei",
}

// Options control inference behavior.
type Options struct {
	// FilenameOverride enables the Japanese-filename heuristic. The
	// inference model mis-detects currency on Japanese statements more
	// often than the filename does, so the filename signal wins by default.
	FilenameOverride bool
}

// Infer derives the statement currency from the extraction summary currency
// and the original file name, with the filename override enabled. Pure and
// deterministic given the same two inputs.
func Infer(summaryCurrency, fileName string) string {
	return InferWithOptions(summaryCurrency, fileName, Options{FilenameOverride: true})
}

// InferWithOptions is Infer with explicit options.
func InferWithOptions(summaryCurrency, fileName string, opts Options) string {
	code := DefaultCurrency
	if s := strings.ToUpper(strings.TrimSpace(summaryCurrency)); s != "" {
		code = s
	}

	if opts.FilenameOverride && looksJapanese(fileName) {
		return "JPY"
	}

	return code
}

// looksJapanese reports whether the file name contains Japanese-script runes
// or a known Japanese bank name.
func looksJapanese(fileName string) bool {
	for _, r := range fileName {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}

	lower := strings.ToLower(fileName)
	for _, bank := range japaneseBanks {
		if strings.Contains(lower, bank) {
			return true
		}
	}

	return false
}
