package middlewares

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorHandler is the top-level catch: any panic becomes a JSON error body
// with an incident id. Internal detail and the stack only leave the server
// when the debug flag is explicitly on. CORS headers were already attached
// by the CORS middleware, so failures stay visible to browser clients.
func ErrorHandler(debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				incident := uuid.NewString()
				log.Printf("panic [%s] %s %s: %v\n%s", incident, c.Request.Method, c.Request.URL.Path, r, debug.Stack())

				body := gin.H{"error": "internal error", "incident_id": incident}
				if debugMode {
					body["detail"] = fmt.Sprint(r)
					body["stack"] = string(debug.Stack())
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			}
		}()

		c.Next()

		// Handler recorded errors without writing a response; normalize.
		if len(c.Errors) > 0 && !c.Writer.Written() {
			incident := uuid.NewString()
			log.Printf("error [%s] %s %s: %v", incident, c.Request.Method, c.Request.URL.Path, c.Errors.Last())
			body := gin.H{"error": "internal error", "incident_id": incident}
			if debugMode {
				body["detail"] = c.Errors.Last().Error()
			}
			c.JSON(http.StatusInternalServerError, body)
		}
	}
}
