package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// invalidFieldMessage is the text attached to a rejected query parameter.
func invalidFieldMessage(key string) string {
	return fmt.Sprintf("Invalid field value for field %q.", key)
}

// ParseIntParam retrieves an int64 value from the provided URL query parameters.
// It returns ok=false when the key is absent. Invalid values are recorded in
// fieldErrors, which is allocated on demand and returned.
func ParseIntParam(params url.Values, key string, fieldErrors map[string][]string) (int64, bool, map[string][]string) {
	val := params.Get(key)
	if val == "" {
		return 0, false, fieldErrors
	}

	n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		if fieldErrors == nil {
			fieldErrors = make(map[string][]string)
		}
		fieldErrors[key] = append(fieldErrors[key], invalidFieldMessage(key))
		return 0, false, fieldErrors
	}
	return n, true, fieldErrors
}

// ParseEpochMillisParam retrieves a timestamp given as epoch milliseconds.
// It returns ok=false when the key is absent or invalid; invalid values are
// recorded in fieldErrors.
func ParseEpochMillisParam(params url.Values, key string, fieldErrors map[string][]string) (time.Time, bool, map[string][]string) {
	ms, ok, fieldErrors := ParseIntParam(params, key, fieldErrors)
	if !ok {
		return time.Time{}, false, fieldErrors
	}
	return time.UnixMilli(ms), true, fieldErrors
}
