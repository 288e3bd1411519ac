package queue

import (
	"fmt"
	"strings"
)

// qualifiedStructName extracts the type name from any value, removing pointer
// prefixes. Used to derive job type names from payload types (e.g.,
// "EmailPayload" from EmailPayload{}).
func qualifiedStructName(v any) string {
	s := fmt.Sprintf("%T", v)
	s = strings.TrimLeft(s, "*")

	return s
}

// clampProgress bounds a progress value to the 0-100 range.
func clampProgress(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
