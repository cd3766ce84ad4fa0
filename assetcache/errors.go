package assetcache

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// structural panics: invariant violations a caller cannot recover from.
// Wrapped with pkg/errors so the panic value carries a stack trace,
// the same way jhdulaney/cockroach wraps its own invariant-violation
// errors before surfacing them.

func panicTypeMismatch(key AssetKey, want, got reflect.Type) {
	panic(errors.Wrapf(
		fmt.Errorf("assetcache: type mismatch for key %q: want %s, got %s", key.String(), want, got),
		"asset key %q reused with two different asset types", key.String(),
	))
}

func panicSlotDisappeared(key AssetKey) {
	panic(errors.Wrapf(
		fmt.Errorf("assetcache: slot for key %q disappeared during load", key.String()),
		"invariant violation",
	))
}
