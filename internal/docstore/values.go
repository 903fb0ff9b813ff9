package docstore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type serverTimestamp struct{}

// ServerTimestamp, used as a field value on Add or Update, is replaced by the
// time the store processed the write.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Increment, used as a field value on Update, adds to the stored number
// atomically. A missing field counts as zero.
type Increment int64

// ArrayUnion, used as a field value on Update, appends the elements that are
// not already present in the stored array.
type ArrayUnion []any

// ArrayRemove, used as a field value on Update, removes every occurrence of
// the elements from the stored array.
type ArrayRemove []any

// NewID returns a random 20-character document id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// Clock hands out server timestamps for backends that assign them locally.
// Timestamps are UTC, microsecond precision and strictly increasing per Clock.
type Clock struct {
	Now func() time.Time // defaults to time.Now

	mu   sync.Mutex
	last time.Time
}

// Next returns the next server timestamp.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Normalize converts v into the canonical read representation.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Truncate(time.Microsecond)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Truncate(time.Microsecond)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	}
	return v
}

// typeRank follows Firestore's cross-type ordering.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	case []any:
		return 6
	case map[string]any:
		return 7
	}
	return 5
}

// Compare orders two normalized values: -1, 0 or +1.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int64, float64:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case time.Time:
		return x.Compare(b.(time.Time))
	case string:
		return strings.Compare(x, b.(string))
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(x), len(y))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

// Apply merges updates into a copy of current, resolving write sentinels
// against now. Backends that have no native transforms use it inside their
// read-modify-write transaction.
func Apply(current, updates map[string]any, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(current)+len(updates))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range updates {
		switch x := v.(type) {
		case serverTimestamp:
			out[k] = now
		case Increment:
			switch cur := out[k].(type) {
			case nil:
				out[k] = int64(x)
			case int64:
				out[k] = cur + int64(x)
			case float64:
				out[k] = cur + float64(x)
			default:
				return nil, fmt.Errorf("increment %q: field is %T, not a number", k, cur)
			}
		case ArrayUnion:
			arr, err := arrayField(out, k)
			if err != nil {
				return nil, err
			}
			for _, e := range x {
				e = Normalize(e)
				if !contains(arr, e) {
					arr = append(arr, e)
				}
			}
			out[k] = arr
		case ArrayRemove:
			arr, err := arrayField(out, k)
			if err != nil {
				return nil, err
			}
			kept := make([]any, 0, len(arr))
			for _, e := range arr {
				if !contains(normalizeAll(x), e) {
					kept = append(kept, e)
				}
			}
			out[k] = kept
		default:
			out[k] = Normalize(v)
		}
	}
	return out, nil
}

func arrayField(fields map[string]any, k string) ([]any, error) {
	switch cur := fields[k].(type) {
	case nil:
		return []any{}, nil
	case []any:
		return append([]any(nil), cur...), nil
	default:
		return nil, fmt.Errorf("array transform %q: field is %T, not an array", k, cur)
	}
}

func normalizeAll(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = Normalize(v)
	}
	return out
}

func contains(arr []any, v any) bool {
	for _, e := range arr {
		if Compare(e, v) == 0 {
			return true
		}
	}
	return false
}

// CompareDocs orders a and b the way a Query with orders sorts them: by each
// clause in turn, then by document id in the direction of the last clause.
func CompareDocs(orders []Order, a, b Document) int {
	idDir := Asc
	for _, o := range orders {
		c := Compare(a.Fields[o.Field], b.Fields[o.Field])
		if o.Dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		idDir = o.Dir
	}
	c := strings.Compare(a.ID, b.ID)
	if idDir == Desc {
		c = -c
	}
	return c
}
