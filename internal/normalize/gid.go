package normalize

import (
	"strconv"
	"strings"
)

// ParseGID extracts the trailing numeric id from a namespaced global id
// such as "gid://shopify/Product/1234567890". Plain numeric strings pass
// through. Returns nil when no numeric id can be recovered.
func ParseGID(value string) *int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if i := strings.LastIndexByte(value, '/'); i >= 0 {
		value = value[i+1:]
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
