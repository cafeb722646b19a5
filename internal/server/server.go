package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/sabaek/bullion/internal/core/handler"
	"github.com/sabaek/bullion/internal/core/logger"
	middlWre "github.com/sabaek/bullion/internal/core/middleware"
	"github.com/sabaek/bullion/internal/core/repository/postgres"
	"github.com/sabaek/bullion/internal/core/repository/rediscache"
	"github.com/sabaek/bullion/internal/core/usecase"
	"github.com/sabaek/bullion/pkg/config"
	"github.com/sabaek/bullion/pkg/postgresdb"
)

type Server struct {
	router     *mux.Router
	log        logger.Logger
	httpServer *http.Server
	db         *postgresdb.Database
	rdb        *redis.Client
	cron       *cron.Cron

	walletHandler      *handler.WalletHandler
	purchaseHandler    *handler.PurchaseHandler
	assetHandler       *handler.AssetHandler
	appointmentHandler *handler.AppointmentHandler
	transferHandler    *handler.TransferHandler
}

func NewServer(log logger.Logger) (*Server, error) {
	cfgDB, err := config.LoadConfigDB()
	if err != nil {
		return nil, err
	}

	cfgApp, err := config.LoadConfigApp()
	if err != nil {
		return nil, err
	}

	db, err := postgresdb.NewPostgresDB(*cfgDB, log)
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(db.DB); err != nil {
		return nil, err
	}

	ledgerRepo := postgres.NewPostgresLedgerRepo(db.DB, log)
	catalogRepo := postgres.NewPostgresCatalogRepo(db.DB, log)
	storeRepo := postgres.NewPostgresStoreRepo(db.DB, log)
	assetRepo := postgres.NewPostgresAssetRepo(db.DB, log)
	purchaseRepo := postgres.NewPostgresPurchaseRepo(db.DB, log)
	appointmentRepo := postgres.NewPostgresAppointmentRepo(db.DB, log)
	transferRepo := postgres.NewPostgresTransferRepo(db.DB, log)

	var rdb *redis.Client
	var prices usecase.PriceSource = catalogRepo
	cfgRedis, err := config.LoadConfigRedis()
	if err != nil {
		return nil, err
	}
	if cfgRedis != nil {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfgRedis.Addr,
			Password: cfgRedis.Password,
			DB:       cfgRedis.DB,
		})
		prices = rediscache.NewPriceCache(catalogRepo, rdb, log)
	}

	converter := usecase.FixedRateConverter{LYDPerUSD: cfgApp.LYDPerUSD}

	ledgerUsecase := usecase.NewLedgerUsecase(ledgerRepo, log)
	assetRegistry := usecase.NewAssetRegistry(assetRepo, catalogRepo, storeRepo, log)
	purchaseUsecase := usecase.NewPurchaseUsecase(purchaseRepo, catalogRepo, storeRepo, prices, converter, log)
	appointmentUsecase := usecase.NewAppointmentUsecase(appointmentRepo, assetRepo, storeRepo, log)
	transferUsecase := usecase.NewTransferUsecase(
		transferRepo, assetRepo, appointmentRepo, storeRepo,
		usecase.HeuristicScorer{}, cfgApp.RiskThreshold, log,
	)

	server := &Server{
		log:                log,
		router:             mux.NewRouter(),
		db:                 db,
		rdb:                rdb,
		walletHandler:      handler.NewWalletHandler(ledgerUsecase, log),
		purchaseHandler:    handler.NewPurchaseHandler(purchaseUsecase, log),
		assetHandler:       handler.NewAssetHandler(assetRegistry, transferUsecase, log),
		appointmentHandler: handler.NewAppointmentHandler(appointmentUsecase, log),
		transferHandler:    handler.NewTransferHandler(transferUsecase, log),
	}

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()
	server.startCron(appointmentUsecase)

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)
	s.walletHandler.RegisterRoutes(s.router)
	s.purchaseHandler.RegisterRoutes(s.router)
	s.assetHandler.RegisterRoutes(s.router)
	s.appointmentHandler.RegisterRoutes(s.router)
	s.transferHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

// startCron schedules the no-show sweep. Confirmed appointments whose day
// has passed get closed out so their assets become transferable again.
func (s *Server) startCron(appointments usecase.AppointmentUsecase) {
	s.cron = cron.New()
	s.cron.AddFunc("@every 15m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := appointments.SweepNoShows(ctx); err != nil {
			s.log.Error("No-show sweep failed", logger.ErrorField("error", err))
		}
	})
	s.cron.Start()
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}

		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.rdb != nil {
			if err := s.rdb.Close(); err != nil {
				s.log.Error("failed to close redis connection", logger.ErrorField("error", err))
			}
		}

		if s.db != nil {
			err := s.db.Close()
			if err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
