package yaml2lua

// Kind discriminates the YAML value forms that survive decoding.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
	KindTagged
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// Value is one node of a decoded YAML document. Only the fields relevant
// to its Kind are set. Mappings keep their entries in source order.
type Value struct {
	Kind Kind

	// Bool is the value of a KindBool
	Bool bool
	// Number is the canonical base-10 literal of a KindNumber
	Number string
	// Str is the raw, unescaped text of a KindString
	Str string
	// Items are the elements of a KindSequence
	Items []*Value
	// Entries are the pairs of a KindMapping, in source order
	Entries []Entry
	// Tag is the tag name of a KindTagged, with the leading "!" stripped
	Tag string
	// Inner is the payload of a KindTagged
	Inner *Value

	// Line and Column locate the value in the source (1-based, 0 if unknown)
	Line   int
	Column int
}

// Entry is a single key value pair of a mapping.
type Entry struct {
	Key   *Value
	Value *Value
}
