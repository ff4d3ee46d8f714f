package annotation

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		initialTime := time.Now()
		method := c.Request.Method
		path := c.Request.URL.String()
		c.Next()
		finalTime := time.Now()
		statusCode := c.Writer.Status()
		log.Printf("http: time:%dms %d %s %s", finalTime.Sub(initialTime)/time.Millisecond, statusCode, method, path)
	}
}
