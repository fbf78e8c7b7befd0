package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/lotboard/internal/store"
)

const (
	// maxBodySize caps ingest request bodies. A full batch for a large lot is
	// a few KB; 1MB leaves generous headroom.
	maxBodySize = 1 << 20

	shutdownTimeout = 5 * time.Second
)

// Server handles HTTP requests for the tracker API and dashboard.
//
// Server provides:
//   - POST /api/sensors: ingest one reading or a batch
//   - GET /api/sensors: full snapshot of the record store
//   - GET /health: liveness probe
//   - GET /metrics: Prometheus metrics
//   - GET /: the embedded dashboard
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	port       int
	assets     fs.FS
	logger     *slog.Logger
	metrics    *metrics
	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: record store backing the API
//   - port: TCP port to listen on
//   - assets: embedded filesystem with dashboard assets (may be nil)
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, port int, assets fs.FS, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:   st,
		port:    port,
		assets:  assets,
		logger:  logger,
		metrics: newMetrics(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestID())

	engine.POST("/api/sensors", s.handleIngest)
	engine.GET("/api/sensors", s.handleSnapshot)
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	if assets != nil {
		engine.GET("/", s.handleDashboard)
	}

	s.engine = engine
	return s
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server runs until the context is cancelled, at which
// point it initiates a graceful shutdown with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.engine,
		// BaseContext derives all request contexts from the server context,
		// so cancelling ctx also cancels in-flight request contexts.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", addr)
	return nil
}

// requestID attaches a uuid to every request for log correlation.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// handleIngest accepts a single sensor reading or an ordered batch.
//
// Both paths share one schema-checked decode step. Upserts for distinct keys
// run concurrently; readings for the same key are applied sequentially in
// submission order, so within one batch the last write for a key wins. All
// upserts are attempted and joined before responding: if any fails the
// response is a single aggregate failure carrying the first observed error,
// while successful siblings stay committed.
func (s *Server) handleIngest(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "Failed to read request body.", err)
		return
	}

	readings, err := store.DecodeReadings(body)
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues("rejected").Inc()
		s.fail(c, http.StatusBadRequest, "Invalid sensor data.", err)
		return
	}

	// group by key, preserving submission order within each key
	type key struct{ idSensor, lot int }
	groups := make(map[key][]store.Reading, len(readings))
	order := make([]key, 0, len(readings))
	for _, r := range readings {
		k := key{r.IDSensor, r.Lot}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	ctx := c.Request.Context()
	var g errgroup.Group
	for _, k := range order {
		batch := groups[k]
		g.Go(func() error {
			for _, r := range batch {
				if err := s.store.Upsert(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.metrics.ingestTotal.WithLabelValues("error").Inc()
		s.fail(c, http.StatusInternalServerError, "Failed to process sensor data.", err)
		return
	}

	s.metrics.ingestTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestReadings.Add(float64(len(readings)))
	c.JSON(http.StatusOK, gin.H{"message": "Sensor data processed successfully"})
}

// handleSnapshot returns the full, unfiltered contents of the record store.
func (s *Server) handleSnapshot(c *gin.Context) {
	readings, err := s.store.ScanAll(c.Request.Context())
	if err != nil {
		s.metrics.snapshotTotal.WithLabelValues("error").Inc()
		s.fail(c, http.StatusInternalServerError, "Failed to retrieve sensor data.", err)
		return
	}

	s.metrics.snapshotTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message": "Sensor data retrieved successfully",
		"data":    readings,
	})
}

// handleDashboard serves the embedded dashboard page.
func (s *Server) handleDashboard(c *gin.Context) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "Dashboard not found")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", content)
}

// fail writes the aggregate failure body and logs the underlying error.
func (s *Server) fail(c *gin.Context, status int, message string, err error) {
	s.logger.Error("request failed",
		"request_id", c.GetString("request_id"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"error", err.Error(),
	)
	c.JSON(status, gin.H{"message": message, "error": err.Error()})
}
