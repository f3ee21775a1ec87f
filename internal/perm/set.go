package perm

import "sort"

// Set is an aggregate of granted permission tokens. The super token, when
// present, satisfies every query.
type Set map[Token]struct{}

// NewSet builds a Set from tokens.
func NewSet(tokens ...Token) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// FromStrings builds a Set from wire-form token strings.
func FromStrings(tokens []string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[Token(t)] = struct{}{}
	}
	return s
}

// Has reports whether the set grants t.
func (s Set) Has(t Token) bool {
	if _, ok := s[Super]; ok {
		return true
	}
	_, ok := s[t]
	return ok
}

// HasAny reports whether the set grants at least one of tokens.
// An empty requirement list is never satisfied.
func (s Set) HasAny(tokens ...Token) bool {
	if len(tokens) == 0 {
		return false
	}
	if _, ok := s[Super]; ok {
		return true
	}
	for _, t := range tokens {
		if _, ok := s[t]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether the set grants every one of tokens.
// An empty requirement list is vacuously satisfied.
func (s Set) HasAll(tokens ...Token) bool {
	if len(tokens) == 0 {
		return true
	}
	if _, ok := s[Super]; ok {
		return true
	}
	for _, t := range tokens {
		if _, ok := s[t]; !ok {
			return false
		}
	}
	return true
}

// Tokens returns the wire form of the set, sorted for stable output.
func (s Set) Tokens() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
