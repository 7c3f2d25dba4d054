// controllers/auth.go
package controllers

import (
	"net/http"

	"orderdesk-backend/utils"

	"github.com/gin-gonic/gin"
)

// Me returns the user resolved from the bearer token
func Me(c *gin.Context) {
	user, ok := utils.CurrentUser(c)
	if !ok {
		utils.RespondWithError(c, http.StatusForbidden, "Authentication credentials were not provided.")
		return
	}

	utils.RespondData(c, http.StatusOK, "", user.Response())
}
