package response

import (
	"github.com/gin-gonic/gin"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error maps err to its HTTP status and writes the error body
func Error(c *gin.Context, err error) {
	appErr := domainerrors.ToAppError(err)
	c.JSON(appErr.Status, body(appErr))
}

// ErrorWithResult writes the error body plus the partial result, so callers
// still see intent ids, refund hashes and reconciliation flags
func ErrorWithResult(c *gin.Context, err error, result interface{}) {
	appErr := domainerrors.ToAppError(err)
	b := body(appErr)
	if result != nil {
		b["result"] = result
	}
	c.JSON(appErr.Status, b)
}

// ErrorWithError sends an error response with a specific status and code
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func body(appErr *domainerrors.AppError) gin.H {
	return gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"error":   appErr.Message,
	}
}
