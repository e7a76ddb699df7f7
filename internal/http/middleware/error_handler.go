package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

// ErrorHandler логирует ошибки запроса и отвечает за тех, кто положил
// ошибку в c.Errors, но не записал ответ.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		code := apperror.CodeOf(err)

		entry := logger.Log.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": c.Writer.Status(),
			"code":   code,
		}).WithError(err)
		switch code {
		case apperror.ErrCodeInternal, apperror.ErrCodeDatabaseError:
			entry.Error("ошибка запроса")
		default:
			entry.Debug("запрос отклонён")
		}

		if !c.Writer.Written() {
			response.Error(c, err)
		}
	}
}
