// Package util contains internal helpers (hashing, sharding, padding) shared
// by the async and sync slot maps.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

// FNV64a hashes a string using 64-bit FNV-1a. Asset keys are always
// string-backed, so no generic type-switch over arbitrary comparable
// key types is needed here.
func FNV64a(s string) uint64 {
	const (
		fnvOffset64 = 14695981039346656037
		fnvPrime64  = 1099511628211
	)
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}
