// Package server - Haupt-Router fuer den lora-inspector Server
// Beinhaltet: Server-Struct, Router-Registrierung, Middleware
package server

import (
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/store"
	"github.com/lora-inspector/inspector/version"
	"github.com/lora-inspector/inspector/worker"
)

var mode string = gin.DebugMode

// Server verbindet die HTTP-Routen mit der Worker-Registry
type Server struct {
	addr     net.Addr
	registry *worker.Registry

	// cache ist nil wenn der Normen-Cache deaktiviert ist
	cache *store.Store
}

// New erstellt einen Server mit leerer Registry. cache darf nil sein.
func New(addr net.Addr, cache *store.Store) *Server {
	return &Server{
		addr:     addr,
		registry: worker.NewRegistry(),
		cache:    cache,
	}
}

// Close beendet alle Worker und schliesst den Cache
func (s *Server) Close() error {
	s.registry.Close()
	return s.cache.Close()
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// GenerateRoutes registriert alle Routen
func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "lora-inspector is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "lora-inspector is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Worker-Verwaltung
	r.POST("/api/load", s.LoadHandler)
	r.DELETE("/api/unload", s.UnloadHandler)
	r.HEAD("/api/ps", s.PsHandler)
	r.GET("/api/ps", s.PsHandler)

	// Abfragen
	r.POST("/api/show", s.ShowHandler)
	r.POST("/api/keys", s.KeysHandler)
	r.POST("/api/stats", s.StatsHandler)
	r.POST("/api/blocks", s.BlocksHandler)

	return r
}
