// utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RespondWithError aborts the request with {"status":"error","message":...}.
func RespondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": StatusError, "message": message})
}

// RespondWithFieldErrors aborts with per-field validation messages.
func RespondWithFieldErrors(c *gin.Context, code int, fields map[string][]string) {
	c.AbortWithStatusJSON(code, gin.H{"status": StatusError, "errors": fields})
}

// RespondList writes {"status":"success","count":n,"results":[...]}.
func RespondList[T any](c *gin.Context, results []T) {
	if results == nil {
		results = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusSuccess, "count": len(results), "results": results})
}

// RespondData writes {"status":"success","data":...}, with a message when one is given.
func RespondData(c *gin.Context, code int, message string, data any) {
	body := gin.H{"status": StatusSuccess, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(code, body)
}
