package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visatrack/internal/documents"
	"visatrack/internal/policies"
	"visatrack/internal/services/health"
	"visatrack/internal/shared/config"
	"visatrack/internal/shared/metrics"
	"visatrack/internal/shared/server/middleware"
	"visatrack/internal/shared/server/respond"
	"visatrack/internal/uploads"
	"visatrack/internal/users"
)

// RouterDeps carries everything the router mounts. Bootstrap builds the
// handlers; the router only wires them.
type RouterDeps struct {
	Config           config.Config
	Health           *health.Service
	UsersHandler     *users.Handler
	DocumentsHandler *documents.Handler
	PoliciesHandler  *policies.Handler
	// UploadsHandler serves the local storage endpoint; nil when uploads
	// go straight to S3.
	UploadsHandler *uploads.Handler
	// UserCheck verifies bearer identities against the account store.
	UserCheck middleware.UserCheck
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.UserCheck),
	)

	r.GET("/metrics", metrics.Handler())
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(r)
	}

	api := r.Group("/api")
	api.GET("/health", healthHandler(deps.Health))
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.PoliciesHandler != nil {
		deps.PoliciesHandler.RegisterRoutes(api)
	}

	return r
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.JSON(c, http.StatusOK, gin.H{"status": "healthy"})
			return
		}
		respond.JSON(c, http.StatusOK, svc.Status(c.Request.Context()))
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
