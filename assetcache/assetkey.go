package assetcache

import "sync"

// AssetKey is an interned, comparable handle to a user key's canonical
// string form. Equality and hashing are by that string; it is cheap to
// copy and safe to use as a map key or across goroutines.
type AssetKey struct {
	s *string
}

// String returns the canonical form this AssetKey was interned from.
func (k AssetKey) String() string {
	if k.s == nil {
		return ""
	}
	return *k.s
}

// IsZero reports whether k is the zero AssetKey (never interned).
func (k AssetKey) IsZero() bool { return k.s == nil }

var internTable sync.Map // string -> *string

// internKey returns the canonical *string for s, reusing a prior
// allocation when one exists so that AssetKeys derived from equal
// strings hold the same pointer. AssetKey's == compares only that
// pointer, so this interning is what makes equal strings compare equal.
func internKey(s string) AssetKey {
	if v, ok := internTable.Load(s); ok {
		return AssetKey{s: v.(*string)}
	}
	boxed := new(string)
	*boxed = s
	actual, _ := internTable.LoadOrStore(s, boxed)
	return AssetKey{s: actual.(*string)}
}

// NewAssetKey interns the canonical string form of a user key, deriving
// it from key.String() the same way every AsyncAssetKey/SyncAssetKey in
// this package does.
func NewAssetKey(canonical string) AssetKey {
	return internKey(canonical)
}
