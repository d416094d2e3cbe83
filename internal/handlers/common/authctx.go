package common

import "github.com/gin-gonic/gin"

const (
	ctxUserID = "auth_user_id"
	ctxAdmin  = "auth_is_admin"
)

// SetAuth stores the resolved caller identity on c, for later handlers and
// the Dispatcher call to read via UserID/IsAdmin.
func SetAuth(c *gin.Context, userID int64, admin bool) {
	c.Set(ctxUserID, userID)
	c.Set(ctxAdmin, admin)
}

// UserID reads the authenticated user id set by the auth middleware.
func UserID(c *gin.Context) int64 {
	v, _ := c.Get(ctxUserID)
	id, _ := v.(int64)
	return id
}

// IsAdmin reports whether the authenticated caller is an admin.
func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get(ctxAdmin)
	admin, _ := v.(bool)
	return admin
}
