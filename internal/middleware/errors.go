package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/pkg/errorspkg"
	"github.com/go-petr/pet-budget/pkg/web"
)

// ExposeErrors controls whether 500 responses include the underlying error.
func ExposeErrors(expose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(web.ExposeErrorsKey, expose)
		c.Next()
	}
}

// Recovery turns a panic into a 500 response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				zerolog.Ctx(c.Request.Context()).Error().Msgf("panic recovered: %v", p)
				web.AbortInternal(c, fmt.Errorf("panic: %v", p))
			}
		}()

		c.Next()
	}
}

// NoRoute responds to requests no route matched.
func NoRoute(c *gin.Context) {
	web.Abort(c, http.StatusNotFound, errorspkg.ErrRouteNotFound)
}
