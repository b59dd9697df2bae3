package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/utils"
)

const maxCallIDLen = 128

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// writeError maps err to its HTTP status. Internal detail only leaves the
// process through the request log.
func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) && status < http.StatusInternalServerError {
		c.JSON(status, APIError{Code: ae.Code, Message: ae.Message})
		return
	}
	c.JSON(status, APIError{Code: utils.CodeOf(err), Message: http.StatusText(status)})
}

func badRequest(c *gin.Context, op, msg string, err error) {
	writeError(c, utils.E(utils.CodeInvalidArgument, op, msg, err))
}

func requireTenantID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("tenant_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

func requireCallID(c *gin.Context, op string) (string, bool) {
	id := strings.TrimSpace(c.Param("call_id"))
	if id == "" || len(id) > maxCallIDLen {
		badRequest(c, op, "invalid call_id", nil)
		return "", false
	}
	return id, true
}

// ownedBy reports whether st belongs to tenantID. Other tenants' calls are
// reported as missing so foreign ids stay indistinguishable from unknown ones.
func ownedBy(c *gin.Context, op string, st *models.LiveCallState, tenantID string) bool {
	if st != nil && st.TenantID == tenantID {
		return true
	}
	writeError(c, utils.E(utils.CodeNotFound, op, "live call not found", nil))
	return false
}
