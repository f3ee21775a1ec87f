package perm

import "strings"

// Stored permission lists come in two legal encodings: a canonical string
// array, or a legacy brace-delimited serialized array ("{a,b,c}") left behind
// by an older writer, sometimes wrapped in a single-element list. Normalize
// accepts every shape and fails open to an empty list, never to a grant.

type shape int

const (
	shapeCanonical shape = iota
	shapeLegacyBraced
	shapeUnrecognized
)

// Normalize converts a raw permission field into a canonical list of tokens.
// It is pure, total, and idempotent.
func Normalize(raw any) []string {
	switch classified, payload := classify(raw); classified {
	case shapeCanonical:
		return dedupe(payload)
	case shapeLegacyBraced:
		return dedupe(splitBraced(payload[0]))
	default:
		return []string{}
	}
}

// classify decides which encoding raw uses. For shapeCanonical the payload is
// the element list; for shapeLegacyBraced it is a single braced string.
func classify(raw any) (shape, []string) {
	switch v := raw.(type) {
	case nil:
		return shapeCanonical, nil
	case string:
		if v == "" {
			return shapeCanonical, nil
		}
		if isBraced(v) {
			return shapeLegacyBraced, []string{v}
		}
		return shapeUnrecognized, nil
	case []string:
		if len(v) == 1 && isBraced(v[0]) {
			return shapeLegacyBraced, []string{v[0]}
		}
		return shapeCanonical, v
	case []any:
		elems := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return shapeUnrecognized, nil
			}
			elems = append(elems, s)
		}
		if len(elems) == 1 && isBraced(elems[0]) {
			return shapeLegacyBraced, []string{elems[0]}
		}
		return shapeCanonical, elems
	default:
		return shapeUnrecognized, nil
	}
}

func isBraced(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

func splitBraced(s string) []string {
	s = strings.TrimSpace(s)
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// dedupe trims tokens, drops empties, and keeps first occurrence order.
func dedupe(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
