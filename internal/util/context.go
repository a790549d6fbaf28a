package util

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raids-lab/cobrew/dao/model"
)

const (
	UserIDKey       = "x-user-id"
	EmailKey        = "x-user-email"
	RolePlatformKey = "x-role-platform"
)

func SetJWTContext(
	c *gin.Context,
	msg JWTMessage,
) {
	c.Set(UserIDKey, msg.UserID)
	c.Set(EmailKey, msg.Email)
	c.Set(RolePlatformKey, msg.RolePlatform)
}

func GetToken(ctx *gin.Context) JWTMessage {
	var msg JWTMessage
	if v, ok := ctx.Get(UserIDKey); ok {
		msg.UserID, _ = v.(uuid.UUID)
	}
	msg.Email = ctx.GetString(EmailKey)
	if v, ok := ctx.Get(RolePlatformKey); ok {
		msg.RolePlatform, _ = v.(model.Role)
	}
	return msg
}
