// Package relayer implements app.Runner for the relayer process.
package relayer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/app/httpserver"
	"github.com/chainsafe/bridge-relayer/pkg/auth"
	"github.com/chainsafe/bridge-relayer/pkg/config"
	"github.com/chainsafe/bridge-relayer/pkg/dbutil"
	"github.com/chainsafe/bridge-relayer/pkg/ethereum"
	"github.com/chainsafe/bridge-relayer/pkg/operator"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
	"github.com/chainsafe/bridge-relayer/pkg/relayer"
	"github.com/chainsafe/bridge-relayer/pkg/solana"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	defaultHTTPReadTimeout       = 15 * time.Second
	defaultHTTPWriteTimeout      = 90 * time.Second
	defaultHTTPIdleTimeout       = 60 * time.Second
)

// Server holds configuration for the relayer process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new relayer Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Runtime is a relayer engine with the connections it was built on
type Runtime struct {
	DB     *bun.DB
	Engine *relayer.Engine

	source      *ethereum.Client
	destination *solana.Client
}

// Bootstrap connects to the database and both chains and builds the engine without
// starting it. The CLI uses it for one-shot commands.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	db, err := dbutil.ConnectDB(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect relayer db: %w", err)
	}
	rt := &Runtime{DB: db}

	rt.source, err = ethereum.NewClient(ctx, &cfg.Source, logger.Named("source"))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize source client: %w", err)
	}
	rt.destination, err = solana.NewClient(ctx, &cfg.Destination, logger.Named("destination"))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize destination client: %w", err)
	}

	rt.Engine, err = relayer.NewEngine(cfg, queue.NewStore(db), rt.source, rt.destination, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create relayer engine: %w", err)
	}
	return rt, nil
}

// Close releases the chain connections and the database
func (rt *Runtime) Close() {
	if rt.destination != nil {
		rt.destination.Close()
	}
	if rt.source != nil {
		rt.source.Close()
	}
	if rt.DB != nil {
		_ = rt.DB.Close()
	}
}

// Run starts the relayer engine and the operational HTTP server.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bridge relayer")

	rt, err := Bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Engine.Start(ctx)
	defer rt.Engine.Stop()

	validator := auth.NewJWTValidator(cfg.Operator.JWTSecret, cfg.Operator.Issuer)
	if !validator.IsConfigured() {
		logger.Warn("Operator JWT secret not set, rescue endpoints will reject every request")
	}
	svc := operator.NewLog(operator.NewEngineService(rt.Engine), logger.Named("operator"))

	router := NewRouter(cfg, rt.Engine.Ready, svc, validator, logger)
	_, writeTimeout := requestTimeouts(cfg)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  defaultHTTPReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  defaultHTTPIdleTimeout,
	}

	return httpserver.ServeAndWait(ctx, logger, httpServer, cfg.Server.ShutdownTimeout)
}

// NewRouter builds the health, metrics and operator routes
func NewRouter(cfg *config.Config, ready func() bool, svc operator.Service, validator *auth.JWTValidator, logger *zap.Logger) http.Handler {
	handlerTimeout, _ := requestTimeouts(cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handlerTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		operator.RegisterRoutes(r, svc, validator, logger)
	})

	return r
}

// requestTimeouts sizes the handler and write timeouts so a forced execution can wait out
// a full confirmation and still answer the operator
func requestTimeouts(cfg *config.Config) (handler, write time.Duration) {
	handler = max(defaultHTTPMiddlewareTimeout, cfg.Relayer.ConfirmationTimeout+2*cfg.Relayer.RPCTimeout)
	write = max(defaultHTTPWriteTimeout, handler+defaultHTTPWriteTimeout-defaultHTTPMiddlewareTimeout)
	return handler, write
}

// requestLogger writes one debug line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
