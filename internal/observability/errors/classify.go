// Package errors derives normalized error class names for metric tags.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/fieldline/statline/internal/core"
)

// Classify unwraps err to its innermost concrete type and returns a
// lowercased, underscore-joined type name suitable for tagging. A unit
// failure whose cause carries no type of its own (a plain errors.New) is
// tagged by its failure kind instead, e.g. "unit_transient".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	name := typeName(err)
	var unitErr *core.UnitError
	if goerrors.As(err, &unitErr) && opaque(name) {
		return "unit_" + unitErr.Kind.String()
	}
	if name == "" {
		return "unknown"
	}
	return name
}

// typeName walks to the innermost wrapped error and names its type.
func typeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	return strings.ReplaceAll(name, ".", "_")
}

// opaque reports class names that say nothing about the failure itself.
func opaque(name string) bool {
	return name == "" || name == "errors_errorstring"
}
