package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful ledger writes and balance lookups.
// Handlers publish the acting username under CtxUsername and, for
// transfers, the transfer id under CtxResourceID.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapPathToAction(c.Request.URL.Path)
		if action == "" {
			return
		}

		var username *string
		if u := c.GetString(CtxUsername); u != "" {
			username = &u
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Username:     username,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(path string) (domain.AuditAction, string) {
	switch path {
	case "/balance", "/api/v1/balance":
		return domain.AuditActionBalanceQuery, "account"
	case "/send_money", "/api/v1/transfers":
		return domain.AuditActionTransfer, "transfer"
	}
	return "", ""
}
