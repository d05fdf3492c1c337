// Package httpapi wires the gin HTTP surface: workflow management CRUD,
// the dynamic webhook dispatcher, and a health endpoint.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/insanalamin/mechaway/internal/core"
)

// statusForKind maps a core.Kind onto the HTTP status the API responds
// with. Kinds with no explicit case fall through to 500, since they
// represent failures the caller couldn't have anticipated or corrected.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindBadRequest, core.KindValidationError, core.KindCompileError, core.KindBadNode:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusForKind(core.Of(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondOK(c *gin.Context, body gin.H) {
	c.JSON(http.StatusOK, body)
}
