//nolint:revive // exported
package expression

import (
	"strconv"
	"strings"
)

// ResolvePath looks up a value in nested maps using dot notation and array
// indexing, e.g. "fetch.body.items[0].id".
func ResolvePath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	return Descend(data, path)
}

// Descend walks path starting at root. An empty path returns root itself.
func Descend(root any, path string) (any, bool) {
	current := root
	for _, seg := range parsePath(path) {
		switch s := seg.(type) {
		case keySegment:
			next, ok := lookupKey(current, s.key)
			if !ok {
				return nil, false
			}
			current = next
		case indexSegment:
			items, ok := AsSlice(current)
			if !ok || s.index < 0 || s.index >= len(items) {
				return nil, false
			}
			current = items[s.index]
		}
	}
	return current, true
}

func lookupKey(current any, key string) (any, bool) {
	switch m := current.(type) {
	case map[string]any:
		v, ok := m[key]
		return v, ok
	case map[string]string:
		v, ok := m[key]
		return v, ok
	case []any, []map[string]any:
		// Numeric keys index into arrays, so "items.0" behaves like "items[0]".
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		items, _ := AsSlice(m)
		if idx < 0 || idx >= len(items) {
			return nil, false
		}
		return items[idx], true
	}
	return nil, false
}

// splitHead separates the first path segment from the remainder.
// "fetch.body[0]" yields ("fetch", "body[0]"), "items[1]" yields ("items", "[1]").
func splitHead(ref string) (string, string) {
	for i := 0; i < len(ref); i++ {
		switch ref[i] {
		case '.':
			return ref[:i], ref[i+1:]
		case '[':
			return ref[:i], ref[i:]
		}
	}
	return ref, ""
}

type pathSegment interface {
	isPathSegment()
}

type keySegment struct {
	key string
}

func (keySegment) isPathSegment() {}

type indexSegment struct {
	index int
}

func (indexSegment) isPathSegment() {}

// parsePath splits "items[0].id" into key("items"), index(0), key("id").
// Malformed brackets are kept as part of the key.
func parsePath(path string) []pathSegment {
	if path == "" {
		return nil
	}

	var segments []pathSegment
	current := strings.Builder{}

	flushKey := func() {
		if current.Len() > 0 {
			segments = append(segments, keySegment{key: current.String()})
			current.Reset()
		}
	}

	i := 0
	for i < len(path) {
		ch := path[i]

		switch ch {
		case '.':
			flushKey()
			i++

		case '[':
			flushKey()
			closeIdx := strings.Index(path[i:], "]")
			if closeIdx == -1 {
				current.WriteString(path[i:])
				i = len(path)
				break
			}

			inner := strings.TrimSpace(path[i+1 : i+closeIdx])
			if idx, err := strconv.Atoi(inner); err == nil {
				segments = append(segments, indexSegment{index: idx})
			} else if unq, err := strconv.Unquote(inner); err == nil {
				segments = append(segments, keySegment{key: unq})
			} else {
				current.WriteString(path[i : i+closeIdx+1])
			}
			i += closeIdx + 1

		case ']':
			i++

		default:
			current.WriteByte(ch)
			i++
		}
	}

	flushKey()
	return segments
}
