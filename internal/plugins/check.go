package plugins

import (
	"fmt"
	"math"
	"strconv"
)

// Check reports whether value is acceptable for an option of the given type.
// Booleans may be given as true/false or as the strings "true" and "false",
// integers as numbers or decimal strings.
func Check(value any, opt Option) error {
	switch opt.Type {
	case TypeBool:
		if _, ok := asBool(value); !ok {
			return fmt.Errorf("%w: expected boolean but was: %v", ErrInvalidValue, value)
		}
	case TypeInt:
		if _, ok := asInt(value); !ok {
			return fmt.Errorf("%w: expected integer but was: %v", ErrInvalidValue, value)
		}
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: expected string but was: %v", ErrInvalidValue, value)
		}
	case TypeStringList:
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%w: expected a list of string but was: %v", ErrInvalidValue, value)
		}
		for _, elem := range list {
			if _, ok := elem.(string); !ok {
				return fmt.Errorf("%w: expected string but was: %v", ErrInvalidValue, elem)
			}
		}
	case TypeIntList:
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%w: expected a list of integers but was: %v", ErrInvalidValue, value)
		}
		for _, elem := range list {
			if _, ok := asInt(elem); !ok {
				return fmt.Errorf("%w: expected integer but was: %v", ErrInvalidValue, elem)
			}
		}
	case TypeList:
		groups, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: expected a keyed list but was: %v", ErrInvalidValue, value)
		}
		for key, g := range groups {
			if key == "" {
				return fmt.Errorf("%w: the list keys cannot be empty", ErrInvalidValue)
			}
			if _, ok := g.(map[string]any); !ok {
				return fmt.Errorf("%w: list entry %s is not a table", ErrInvalidValue, key)
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownType, opt.Type)
	}
	return nil
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
