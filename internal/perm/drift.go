package perm

// NeedsResync reports whether a client-held cached permission view is missing
// tokens that the authoritative view grants. The check is one-directional:
// tokens present only in the cache are ignored, since an under-authorized
// client is the case that requires a refresh. Callers wanting strict equality
// should check both directions themselves.
//
// The cached view is diagnostic input only. It must never be consulted when
// deciding whether to grant access.
func NeedsResync(cached, authoritative Set) bool {
	for t := range authoritative {
		if _, ok := cached[t]; !ok {
			return true
		}
	}
	return false
}
