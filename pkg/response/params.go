package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParamID parses a positive integer path parameter. On failure it answers 400 and
// returns false; the caller just returns.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		Invalid(c, "invalid request", map[string]string{name: "must be a positive integer"})
		return 0, false
	}
	return id, true
}
