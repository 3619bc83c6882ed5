// Package keywords matches rule trigger terms against inbound comment and DM text.
//
// Text and terms both pass through Normalize so that casing, fullwidth forms,
// accents and invisible characters do not defeat a match:
//
//  1. drop invalid UTF-8 and control characters
//  2. Unicode NFKD so accents split off their base letter
//  3. case folding
//  4. strip combining marks and format characters (ZWJ, ZWNJ, BOM)
//  5. width fold fullwidth to ASCII, then recompose with NFC
//  6. collapse every whitespace run to one space and trim
package keywords

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// transformer chains are stateful, so each call borrows one
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.Remove(runes.Predicate(isControl)),
			norm.NFKD,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
			norm.NFC,
		)
	},
}

// Normalize returns the matching form of s
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		// fall back to a plain lower-case so a broken rune never disables a rule
		ns = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(ns), " ")
}

// isControl reports C0/C1 controls and DEL; whitespace controls survive until Fields
func isControl(r rune) bool {
	switch r {
	case '\n', '\r', '\t':
		return false
	}
	return r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f)
}
