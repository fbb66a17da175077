package table

// Kind is the coarse storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return "text"
	}
}

// InferKinds scans every cell and picks the most specific kind per column:
// integer when all non-nil cells are int64, float when all are numeric,
// text otherwise. A column with no values is text.
func InferKinds(t *Table) []Kind {
	out := make([]Kind, len(t.Columns))
	for col := range t.Columns {
		var seen bool
		allInt := true
		allNum := true

		for _, r := range t.Rows {
			switch r[col].(type) {
			case nil:
				continue
			case int64, int:
				seen = true
			case float64:
				seen = true
				allInt = false
			default:
				seen = true
				allInt = false
				allNum = false
			}
			if !allNum {
				break
			}
		}

		switch {
		case !seen:
			out[col] = KindText
		case allInt:
			out[col] = KindInteger
		case allNum:
			out[col] = KindFloat
		default:
			out[col] = KindText
		}
	}
	return out
}

// Coerce converts a cell to the Go value a loader binds for kind k.
// Text columns receive the formatted string of numeric cells.
func Coerce(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case KindInteger:
		switch x := v.(type) {
		case int64:
			return x
		case int:
			return int64(x)
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x
		case int64:
			return float64(x)
		case int:
			return float64(x)
		}
	}
	return Format(v)
}

// CoerceRows returns rows converted per Coerce, one kind per column.
func CoerceRows(t *Table, kinds []Kind) [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		nr := make([]any, len(r))
		for j, v := range r {
			nr[j] = Coerce(v, kinds[j])
		}
		out[i] = nr
	}
	return out
}
