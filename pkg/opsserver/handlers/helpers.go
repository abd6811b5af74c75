package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func parseLimit(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseOffset(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func formatTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.UTC().Format(time.RFC3339Nano)
	return &formatted
}

// requestTenantID resolves the tenant scope: the token claim wins, the
// tenantId query parameter is the fallback for unscoped tokens.
func requestTenantID(c *gin.Context) (uuid.UUID, bool) {
	if claimed := c.GetString("tenant_id"); claimed != "" {
		if id, err := uuid.Parse(claimed); err == nil {
			return id, true
		}
	}
	if query := c.Query("tenantId"); query != "" {
		if id, err := uuid.Parse(query); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}
