package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/middleware"
	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/internal/service"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
	"github.com/noah-isme/mentormatch-api/pkg/response"
)

// currentUser returns the authenticated caller or writes a 401 and reports false.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func auditContext(c *gin.Context, actorID string) service.AuditContext {
	return service.AuditContext{
		ActorID:   actorID,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// bindJSON decodes the body or writes a 400.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid request payload"))
		return false
	}
	return true
}
