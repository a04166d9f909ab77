package domain

import (
	"strconv"
	"strings"
)

// Kind is the category of a Wikibase entity, encoded by the identifier prefix.
type Kind int

const (
	KindItem         Kind = iota // Q…
	KindProperty                 // P…
	KindLexeme                   // L…
	KindMediaInfo                // M…
	KindEntitySchema             // E…
	KindForm                     // L…-F…
	KindSense                    // L…-S…
	KindAny                      // selector only (e.g. Flush(KindAny))
	KindUnknown                  // invalid or unrecognized identifier
)

// BatchableKinds is the number of kinds that own their own queue.
// Forms and senses are fetched through their parent lexeme.
const BatchableKinds = 5

// prefixes maps batch index to identifier prefix letter.
const prefixes = "QPLME"

var kindNames = map[Kind]string{
	KindItem:         "item",
	KindProperty:     "property",
	KindLexeme:       "lexeme",
	KindMediaInfo:    "mediainfo",
	KindEntitySchema: "entity_schema",
	KindForm:         "form",
	KindSense:        "sense",
	KindAny:          "any",
	KindUnknown:      "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a kind name back to its Kind. Unrecognized names yield
// KindUnknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Batchable reports whether the kind owns its own batch queue.
func (k Kind) Batchable() bool {
	return k >= KindItem && k <= KindEntitySchema
}

// Concrete reports whether the kind names an actual entity category,
// as opposed to the any/unknown selectors.
func (k Kind) Concrete() bool {
	return k >= KindItem && k <= KindSense
}

// Root collapses form and sense to their owning lexeme kind.
func (k Kind) Root() Kind {
	if k == KindForm || k == KindSense {
		return KindLexeme
	}
	return k
}

// BatchIndex returns the queue index for a batchable kind, collapsing
// form/sense to the lexeme slot. Selector kinds return -1.
func (k Kind) BatchIndex() int {
	r := k.Root()
	if !r.Batchable() {
		return -1
	}
	return int(r)
}

// KindAt returns the batchable kind stored at queue index i.
func KindAt(i int) Kind {
	if i < 0 || i >= BatchableKinds {
		return KindUnknown
	}
	return Kind(i)
}

// Identify determines the kind of a full prefixed identifier.
//
// The grammar is strict: a prefix letter from QPLME, a base-10 numeral with
// no leading zeros that fits a signed 32-bit integer, and, for lexemes only,
// an optional "-F<digits>" or "-S<digits>" suffix consuming the remainder.
// Anything else is KindUnknown. Identify never panics.
func Identify(entity string) Kind {
	if len(entity) < 2 {
		return KindUnknown
	}
	k := strings.IndexByte(prefixes, entity[0])
	if k < 0 {
		return KindUnknown
	}
	n, ok := parseNumeral(entity[1:])
	if !ok {
		return KindUnknown
	}
	rest := entity[1+n:]
	if rest == "" {
		return Kind(k)
	}
	if Kind(k) != KindLexeme {
		return KindUnknown
	}
	if len(rest) < 3 || rest[0] != '-' {
		return KindUnknown
	}
	tag := rest[1]
	if tag != 'F' && tag != 'S' {
		return KindUnknown
	}
	m, ok := parseNumeral(rest[2:])
	if !ok || m != len(rest)-2 {
		return KindUnknown
	}
	if tag == 'F' {
		return KindForm
	}
	return KindSense
}

// Normalize renders a numeric identifier as a prefixed string.
//
// Numeric form/sense identifiers are not representable as bare numerals and
// normalize to the lexeme prefix; callers that care log the mapping.
func Normalize(id int, kind Kind) (string, error) {
	if id < 0 {
		return "", ErrNegativeID
	}
	if !kind.Concrete() {
		return "", ErrInvalidKind
	}
	idx := kind.Root()
	return string(prefixes[idx]) + strconv.Itoa(id), nil
}

// EntityRoot returns the canonical identifier used for queue membership and
// remote lookup. Form and sense identifiers collapse to their parent lexeme;
// every other valid identifier is returned unchanged.
func EntityRoot(entity string) (string, error) {
	kind := Identify(entity)
	if kind == KindUnknown {
		return "", ErrInvalidIdentifier
	}
	if kind == KindForm || kind == KindSense {
		return entity[:strings.IndexByte(entity, '-')], nil
	}
	return entity, nil
}

// parseNumeral scans the leading decimal digits of s and reports how many
// bytes they occupy. It fails on an empty digit run, on leading zeros in a
// multi-digit numeral, and on values outside the signed 32-bit range; the
// round-trip check covers both of the latter at once.
func parseNumeral(s string) (int, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	digits := s[:i]
	v, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(v, 10) != digits {
		return 0, false
	}
	return i, true
}
