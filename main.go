package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/rmitchellscott/binder/internal/auth"
	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/downloader"
	"github.com/rmitchellscott/binder/internal/handlers"
	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/jobs"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/merge"
	"github.com/rmitchellscott/binder/internal/retention"
	"github.com/rmitchellscott/binder/internal/storage"
	"github.com/rmitchellscott/binder/internal/version"
)

//go:embed ui
var embeddedUI embed.FS

func main() {
	// Load .env if present
	_ = godotenv.Load()

	if err := logging.Init(config.GetBool("DEBUG", false)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(); err != nil {
		logging.Logf("[ERROR] %v", err)
		logging.Sync()
		os.Exit(1)
	}
}

func run() error {
	s := config.Load()
	gin.SetMode(s.GinMode)
	downloader.Configure(s.FetchTimeout, s.SniffTimeout)
	logging.Logf("[STARTUP] %s", version.String())

	if s.StoreOutput {
		if err := storage.InitializeStorage(context.Background()); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer database.Close()
	} else if auth.WebAuthEnabled() {
		// login attempts are still audited
		if err := database.Initialize(); err != nil {
			logging.Logf("[WARNING] [STARTUP] Login auditing disabled: %v", err)
		} else {
			defer database.Close()
		}
	}

	uiFS, err := fs.Sub(embeddedUI, "ui")
	if err != nil {
		return fmt.Errorf("embed error: %w", err)
	}

	store := jobs.NewStore()
	worker := retention.NewWorker(storage.GetStorageBackend(), store,
		config.GetDuration("RETENTION_INTERVAL", 10*time.Minute),
		config.GetDuration("JOB_RETENTION", time.Hour))
	worker.Start()
	defer worker.Stop()

	server := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           setupRouter(s, store, uiFS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logging.Logf("[SHUTDOWN] Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Logf("[ERROR] [SHUTDOWN] %v", err)
		}
	}()

	logging.Logf("[STARTUP] Listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func setupRouter(s config.Settings, store *jobs.Store, uiFS fs.FS) *gin.Engine {
	router := gin.New()
	router.Use(logging.GinLogger(), gin.Recovery(), corsMiddleware(s), i18n.LanguageMiddleware())
	mergeHandler := merge.NewHandler(s, store)
	requireAuth := auth.ApiKeyOrJWTMiddleware()

	// Always available
	router.GET("/api/health", handlers.HealthHandler)
	router.GET("/api/version", handlers.VersionHandler)
	router.GET("/api/config", handlers.ConfigHandler(s))
	router.POST("/api/auth/login", auth.LoginHandler)
	router.POST("/api/auth/logout", auth.LogoutHandler)
	router.GET("/api/auth/check", auth.CheckAuthHandler)

	// Protected API endpoints (require auth if configured)
	protected := router.Group("/api", requireAuth)
	protected.POST("/upload", mergeHandler.UploadHandler)
	protected.POST("/merge/json", mergeHandler.JSONHandler)
	protected.POST("/jobs", mergeHandler.EnqueueHandler)
	protected.GET("/jobs/:id/result", mergeHandler.ResultHandler)
	protected.GET("/status/:id", mergeHandler.StatusHandler)
	protected.GET("/status/ws/:id", mergeHandler.StatusWSHandler)
	protected.GET("/sniff", downloader.SniffHandler)
	protected.GET("/documents", handlers.ListDocumentsHandler)
	protected.DELETE("/documents", handlers.PurgeDocumentsHandler)
	protected.GET("/documents/:id", handlers.GetDocumentHandler)
	protected.DELETE("/documents/:id", handlers.DeleteDocumentHandler)

	// the original front end posted here
	router.POST("/upload", requireAuth, mergeHandler.UploadHandler)

	// File server for all embedded files (gate behind DISABLE_UI)
	if !s.DisableUI {
		router.NoRoute(spaHandler(uiFS))
	} else {
		logging.Logf("[STARTUP] DISABLE_UI is set, running in API-only mode (no UI)")
		router.NoRoute(func(c *gin.Context) {
			c.AbortWithStatus(http.StatusNotFound)
		})
	}
	return router
}

func corsMiddleware(s config.Settings) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "Accept-Language"},
		ExposeHeaders:   []string{"Content-Disposition", "Content-Language", "X-Page-Count", "X-Document-Id"},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}
	if len(s.AllowedOrigins) == 0 || (len(s.AllowedOrigins) == 1 && s.AllowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.AllowedOrigins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// spaHandler serves embedded files and falls back to index.html. Unknown
// /api/ paths stay 404.
func spaHandler(uiFS fs.FS) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		// strip leading slash
		p := strings.TrimPrefix(c.Request.URL.Path, "/")
		if p == "" {
			p = "index.html"
		}

		// Check if file exists in embedded FS
		if stat, err := fs.Stat(uiFS, p); err != nil || stat.IsDir() {
			p = "index.html"
		}

		http.ServeFileFS(c.Writer, c.Request, uiFS, p)
	}
}
