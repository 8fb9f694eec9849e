package utils

import (
	"strconv"
)

// ParseID parses a decimal entity id. Ids are positive.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
