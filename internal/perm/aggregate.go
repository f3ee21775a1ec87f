package perm

// RoleGrant carries one role's raw permission field into aggregation. The
// Permissions value may be a canonical list or any of the legacy encodings
// accepted by Normalize.
type RoleGrant struct {
	Name        string
	Permissions any
}

// Aggregate flattens the grants of every assigned role into one Set. Each
// role's raw field is normalized first; a field that normalizes to nothing
// contributes nothing. An empty assignment list yields an empty Set.
func Aggregate(grants []RoleGrant) Set {
	s := make(Set)
	for _, g := range grants {
		for _, t := range Normalize(g.Permissions) {
			s[Token(t)] = struct{}{}
		}
	}
	return s
}

// Malformed reports the names of roles whose permission field normalized to
// empty despite being non-nil, so callers can flag them for operators.
func Malformed(grants []RoleGrant) []string {
	var names []string
	for _, g := range grants {
		if g.Permissions == nil {
			continue
		}
		if s, ok := g.Permissions.(string); ok && s == "" {
			continue
		}
		if list, ok := g.Permissions.([]string); ok && len(list) == 0 {
			continue
		}
		if len(Normalize(g.Permissions)) == 0 {
			names = append(names, g.Name)
		}
	}
	return names
}
