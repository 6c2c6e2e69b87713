package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/middlewares"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/mmdatafocus/cash_reconciliation/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// apiServer holds the dependencies handlers need. The database is attached after
// the port is already open, so handlers read it through deps().
type apiServer struct {
	logger   *logrus.Logger
	opts     config.ReconciliationOptions
	validate *validator.Validate

	mu         sync.RWMutex
	db         *gorm.DB
	reconciler *workflow.Reconciler
}

func newAPIServer(logger *logrus.Logger, opts config.ReconciliationOptions) *apiServer {
	return &apiServer{
		logger:   logger,
		opts:     opts,
		validate: validator.New(),
	}
}

func (s *apiServer) attach(db *gorm.DB) {
	r := workflow.NewGormReconciler(db, s.logger, s.opts)
	s.mu.Lock()
	s.db = db
	s.reconciler = r
	s.mu.Unlock()
}

func (s *apiServer) deps() (*gorm.DB, *workflow.Reconciler) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db, s.reconciler
}

func (s *apiServer) database() *gorm.DB {
	db, _ := s.deps()
	return db
}

func (s *apiServer) ready() bool {
	db, r := s.deps()
	return db != nil && r != nil
}

func correlationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// readinessGate answers the startup probe and returns 503 until dependencies are connected.
func readinessGate(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !ready() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

// newRouter registers every route. pre runs after the correlation id middleware
// and before any handler.
func newRouter(s *apiServer, pre ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(correlationIdMiddleware())
	r.Use(pre...)

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/pubsub", s.reconcileRequestPushHandler())

	api := r.Group("/api", middlewares.AuthMiddleware(), middlewares.LoaderMiddleware(s.database))
	api.POST("/reconciliations/run", s.runReconciliationHandler())
	api.POST("/reconciliations/run-range", s.runRangeHandler())
	api.GET("/reconciliations", s.listReconciliationsHandler())
	api.GET("/reconciliations/summary", s.summaryHandler())
	api.GET("/reconciliations/export", s.exportHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; everything else allows all origins.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	corsConfig.AllowCredentials = true
	return cors.New(corsConfig)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	opts := config.ReconciliationOptionsFromEnv()
	s := newAPIServer(logger, opts)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	pre := []gin.HandlerFunc{readinessGate(s.ready), corsMiddleware()}
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		pre = append(pre, NewRateLimiter(config.GetRedisDB, limit, time.Duration(windowSec)*time.Second).RateLimitMiddleware)
	}
	pre = append(pre, customErrorLogger(logger), gin.Recovery())
	r := newRouter(s, pre...)

	// Listen before connecting so the startup probe passes.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; run it as a separate job when SKIP_MIGRATIONS=true.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal("AutoMigrate failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	s.attach(db)

	subCtx, cancelSubscriber := context.WithCancel(context.Background())
	defer cancelSubscriber()
	if err := runRequestSubscriber(subCtx, s); err != nil {
		logger.WithFields(logrus.Fields{"field": "subscriber"}).Error("request subscriber not started: " + err.Error())
	}

	logger.WithFields(logrus.Fields{
		"info":         "Connection Established",
		"claim_policy": opts.ClaimPolicy,
		"concurrency":  opts.RangeConcurrency,
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop pulling new requests before draining HTTP.
	cancelSubscriber()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
