// Package httpserver manages server creation and api routing.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/envelopedelivery"
	"github.com/go-petr/pet-budget/internal/enveloperepo"
	"github.com/go-petr/pet-budget/internal/envelopeservice"
	"github.com/go-petr/pet-budget/internal/middleware"
	"github.com/go-petr/pet-budget/internal/transferdelivery"
	"github.com/go-petr/pet-budget/internal/transferservice"
	"github.com/go-petr/pet-budget/pkg/configpkg"
)

// MaxBodyBytes is the largest request body the API reads.
const MaxBodyBytes = 1 << 20

var (
	_ envelopeservice.Repo = (*enveloperepo.RepoJSON)(nil)
	_ envelopeservice.Repo = (*enveloperepo.RepoPGS)(nil)
)

// Server holds the envelope store, handlers router and configuration.
type Server struct {
	Store  envelopeservice.Repo
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(store envelopeservice.Repo, cache envelopeservice.Cache, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	envelopeService := envelopeservice.New(store, cache)
	transferService := transferservice.New(store, cache)

	envelopeHandler := envelopedelivery.NewHandler(envelopeService)
	transferHandler := transferdelivery.NewHandler(transferService)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := envelopedelivery.RegisterValidators(v); err != nil {
			return nil, errors.New("cannot register envelope validators")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Recovery())
	engine.Use(middleware.ExposeErrors(!config.IsProduction()))
	engine.Use(middleware.BodyLimit(MaxBodyBytes))

	engine.GET("/health", func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")

	envelopes := api.Group("/envelopes")
	envelopes.GET("", envelopeHandler.List)
	envelopes.POST("", envelopeHandler.Create)
	envelopes.GET("/:id", envelopeHandler.Get)
	envelopes.PUT("/:id", envelopeHandler.Replace)
	envelopes.PATCH("/:id", envelopeHandler.Patch)
	envelopes.DELETE("/:id", envelopeHandler.Delete)
	envelopes.POST("/:id/transactions", envelopeHandler.CreateTransaction)
	envelopes.GET("/:id/transactions", envelopeHandler.ListTransactions)

	api.POST("/transfers", transferHandler.Create)

	engine.NoRoute(middleware.NoRoute)

	server := &Server{
		Store:  store,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
