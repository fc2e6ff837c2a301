package handler

import (
	"net/http"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userHeader = "X-User-ID"

// respondError writes err with the status of its kind. Internal details are
// logged, never returned.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		logger.L.Error("request failed", "path", c.FullPath(), "method", c.Request.Method, "error", err)
	}
	c.JSON(apperror.HTTPStatus(kind), gin.H{"error": apperror.PublicMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// actingUser returns the authenticated user id forwarded by the gateway.
func actingUser(c *gin.Context) *string {
	if id := c.GetHeader(userHeader); id != "" {
		return &id
	}
	return nil
}

func planParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Ungültige Plan-ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindBody decodes the JSON body into dst. Missing or malformed fields are a
// bad request.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Ungültige Eingabe")
		return false
	}
	return true
}

func parseID(c *gin.Context, raw, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, msg)
		return uuid.Nil, false
	}
	return id, true
}
