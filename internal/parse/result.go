package parse

// Kind tags which variant of Result is populated
type Kind int

const (
	KindScalar Kind = iota + 1 // A lone non-string JSON primitive
	KindList                   // An ordered list of extracted strings
	KindKeyed                  // An object mapping keys to string lists
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindKeyed:
		return "keyed"
	default:
		return "unknown"
	}
}

// Result is the parsed form of a model response.
// Exactly one of Scalar, List or Keyed is meaningful, selected by Kind.
type Result struct {
	Kind   Kind
	Scalar string
	List   []string
	Keyed  map[string][]string
}

// Scalar wraps the JSON text of a primitive value
func Scalar(raw string) Result {
	return Result{Kind: KindScalar, Scalar: raw}
}

// List wraps an ordered list of strings
func List(items []string) Result {
	if items == nil {
		items = []string{}
	}
	return Result{Kind: KindList, List: items}
}

// Keyed wraps a mapping of keys to string lists
func Keyed(m map[string][]string) Result {
	if m == nil {
		m = map[string][]string{}
	}
	return Result{Kind: KindKeyed, Keyed: m}
}
