package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrInvalidArgument is wrapped by every argument validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

// Validate checks that every dependency of a component is set. Nil pointers,
// interfaces, maps, slices and funcs, as well as zero values, are rejected.
func Validate(name string, deps ...any) error {
	for i, dep := range deps {
		if missing(dep) {
			return fmt.Errorf("missing required deps for component %s (position %d): %w", name, i, ErrInvalidArgument)
		}
	}

	return nil
}

// Mandatory rejects an empty or blank string argument.
func Mandatory(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required: %w", field, ErrInvalidArgument)
	}

	return nil
}

func missing(dep any) bool {
	if dep == nil {
		return true
	}

	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
