package perm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want []string
	}{
		{"nil", nil, []string{}},
		{"empty string", "", []string{}},
		{"empty list", []string{}, []string{}},
		{"canonical list", []string{"post_create", "comment_create"}, []string{"post_create", "comment_create"}},
		{"wrapped legacy", []string{"{post_create,comment_create,vote_cast}"}, []string{"post_create", "comment_create", "vote_cast"}},
		{"bare legacy", "{admin_users, admin_roles}", []string{"admin_users", "admin_roles"}},
		{"legacy with padding", "  {a, b ,c}  ", []string{"a", "b", "c"}},
		{"empty braces", "{}", []string{}},
		{"bare string not braced", "post_create", []string{}},
		{"number", 42, []string{}},
		{"bool", true, []string{}},
		{"mixed any list", []any{"a", "b"}, []string{"a", "b"}},
		{"any list with non-string", []any{"a", 1}, []string{}},
		{"duplicates collapse", []string{"a", "a", "b"}, []string{"a", "b"}},
		{"blank tokens dropped", "{a,,b, }", []string{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []any{
		nil,
		"",
		[]string{},
		[]string{"a", "b"},
		[]string{"{a,b,c}"},
		"{a,b,c}",
		3.14,
	}
	for _, raw := range inputs {
		once := Normalize(raw)
		twice := Normalize(any(once))
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeNeverGrantsOnGarbage(t *testing.T) {
	for _, raw := range []any{42, true, map[string]any{"x": 1}, []any{1, 2}, struct{}{}} {
		if got := Normalize(raw); len(got) != 0 {
			t.Fatalf("unparseable %v normalized to %v, want empty", raw, got)
		}
	}
}
