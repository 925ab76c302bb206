package vectordb

import "strings"

// Well-known metadata keys written by ingestion.
const (
	KeyFilename = "filename"
	KeyFileType = "file_type"
	KeyLocation = "location"
)

// Chunk is an immutable unit of retrievable content. Embedding is nil on
// hosts that never embed.
type Chunk struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  Metadata
}

// QueryResult is one ranked hit. Score is cosine similarity for vector
// search and keyword overlap for keyword search, both in [0,1].
type QueryResult struct {
	ChunkID  string
	Content  string
	Metadata Metadata
	Score    float64
}

// Op is a filter predicate.
type Op int

const (
	// OpEq matches values equal to the condition value, ignoring case.
	OpEq Op = iota
	// OpContains matches values containing the condition value, ignoring case.
	OpContains
)

func (o Op) String() string {
	if o == OpContains {
		return "contains"
	}
	return "eq"
}

// Condition constrains a single metadata key.
type Condition struct {
	Key   string
	Op    Op
	Value string
}

// Filter is a conjunction of conditions built fresh for each question. The
// zero Filter matches everything.
type Filter struct {
	Conditions []Condition
}

// Eq returns a copy of f with an equality condition added.
func (f Filter) Eq(key, value string) Filter {
	return f.with(Condition{Key: key, Op: OpEq, Value: value})
}

// Contains returns a copy of f with a substring condition added.
func (f Filter) Contains(key, value string) Filter {
	return f.with(Condition{Key: key, Op: OpContains, Value: value})
}

func (f Filter) with(c Condition) Filter {
	conds := make([]Condition, 0, len(f.Conditions)+1)
	conds = append(conds, f.Conditions...)
	return Filter{Conditions: append(conds, c)}
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool { return len(f.Conditions) == 0 }

// Value returns the value constrained for key, if any.
func (f Filter) Value(key string) (string, bool) {
	for _, c := range f.Conditions {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Matches reports whether md satisfies every condition. A missing key
// never matches.
func (f Filter) Matches(md Metadata) bool {
	for _, c := range f.Conditions {
		v, ok := md.Get(c.Key)
		if !ok {
			return false
		}
		got := strings.ToLower(strings.TrimSpace(v.String()))
		want := strings.ToLower(strings.TrimSpace(c.Value))
		switch c.Op {
		case OpContains:
			if !strings.Contains(got, want) {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

// Map renders the filter as key to value for logging and responses.
func (f Filter) Map() map[string]string {
	if f.IsEmpty() {
		return nil
	}
	out := make(map[string]string, len(f.Conditions))
	for _, c := range f.Conditions {
		out[c.Key] = c.Value
	}
	return out
}
