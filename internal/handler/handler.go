package handler

import (
	"github.com/gin-gonic/gin"

	"mall/internal/middleware"
	"mall/pkg/utils"
)

// bindJSON decodes the body into obj, writing a validation error when it fails
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		utils.Error(c, utils.CodeValidation, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		utils.ErrorFrom(c, err)
		return 0, false
	}
	return id, true
}

// currentUser the authenticated caller, set by middleware.Auth
func currentUser(c *gin.Context) (uint64, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "Unauthorized")
	}
	return id, ok
}
