package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseLimit safely parses the limit query parameter. A limit of 0 means "no
// limit" and is the default; otherwise the value must be a positive integer
// no greater than maxLimit.
func ParseLimit(c *gin.Context, maxLimit int) (int, error) {
	limitStr := c.DefaultQuery("limit", "0")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit parameter: must be a non-negative integer")
	}
	if limit > maxLimit {
		return 0, fmt.Errorf("invalid limit parameter: must not exceed %d", maxLimit)
	}
	return limit, nil
}
