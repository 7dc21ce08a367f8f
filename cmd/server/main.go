package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vaultswap.backend/internal/config"
	"vaultswap.backend/internal/domain/entities"
	"vaultswap.backend/internal/infrastructure/blockchain"
	"vaultswap.backend/internal/infrastructure/bridge"
	pgsource "vaultswap.backend/internal/infrastructure/datasources/postgres"
	"vaultswap.backend/internal/infrastructure/events"
	"vaultswap.backend/internal/infrastructure/jobs"
	"vaultswap.backend/internal/infrastructure/metrics"
	"vaultswap.backend/internal/infrastructure/oracle"
	"vaultswap.backend/internal/infrastructure/repositories"
	"vaultswap.backend/internal/infrastructure/routeprovider"
	"vaultswap.backend/internal/interfaces/http/handlers"
	"vaultswap.backend/internal/interfaces/http/middleware"
	"vaultswap.backend/internal/usecases"
	"vaultswap.backend/pkg/jwt"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	openHealthConn = pgsource.Open
	connectNATS    = events.Connect
	newClients     = blockchain.NewClientFactory
	registerer     = prometheus.DefaultRegisterer
	gatherer       = prometheus.DefaultGatherer
	runServer      = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

// app is everything the HTTP server and background jobs need
type app struct {
	router  *gin.Engine
	recon   *jobs.ReconciliationJob
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	defer logger.Sync()
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.recon != nil {
		go a.recon.Start(jobCtx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")
		if a.recon != nil {
			a.recon.Stop()
		}
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "VaultSwap backend starting", zap.String("port", cfg.Server.Port))
	if err := runServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// buildApp wires repositories, adapters, usecases and handlers
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fail(fmt.Errorf("failed to connect to database: %w", err))
	}

	var dbHealth *pgsource.HealthConn
	if dbHealth, err = openHealthConn(cfg.Database); err != nil {
		logger.Warn(ctx, "Database not available, endpoints will return errors", zap.Error(err))
		dbHealth = nil
	} else {
		a.closers = append(a.closers, func() { _ = dbHealth.Close() })
	}

	clients := newClients()
	a.closers = append(a.closers, clients.CloseAll)
	chain, err := clients.GetEVMClient(cfg.Blockchain.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("failed to dial chain rpc: %w", err))
	}

	assets := entities.DefaultAssetRegistry()
	assets.SetAddress(entities.AssetTRZRY, cfg.Blockchain.TreasuryTokenAddress)

	swapMetrics := metrics.NewSwap(registerer)

	var publisher usecases.EventPublisher = usecases.NoopPublisher()
	if cfg.NATS.URL != "" {
		pub, conn, err := connectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Warn(ctx, "NATS unavailable, swap events will not be published", zap.Error(err))
		} else {
			publisher = pub
			a.closers = append(a.closers, func() { drainNATS(conn) })
		}
	}

	quoteRepo := repositories.NewQuoteRepository(db)
	intentRepo := repositories.NewIntentRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	feeRepo := repositories.NewFeeRecordRepository(db)
	failedRepo := repositories.NewFailedTransactionRepository(db)
	walletKeyRepo := repositories.NewWalletKeyRepository(db)
	walletMetaRepo := repositories.NewWalletMetadataRepository(db)
	addressRepo := repositories.NewOnchainAddressRepository(db)
	securityRepo := repositories.NewSecurityEventRepository(db)
	deploymentRepo := repositories.NewDeploymentRepository(db)
	uow := repositories.NewUnitOfWork(db)

	priceOracle := oracle.NewPriceOracle(oracle.Config{
		FeedURL:      cfg.Providers.PriceFeedURL,
		TreasuryPool: cfg.Blockchain.TreasuryPoolAddress,
		CacheTTL:     cfg.Providers.PriceCacheTTL,
		Timeout:      cfg.Providers.HTTPTimeout,
	}, assets, chain)

	router := routeprovider.NewAggregator(cfg.Blockchain.ChainID,
		routeprovider.NewZeroX(routeprovider.ZeroXConfig{
			BaseURL: cfg.Providers.ZeroXBaseURL,
			APIKey:  cfg.Providers.ZeroXAPIKey,
			Timeout: cfg.Providers.HTTPTimeout,
		}),
		routeprovider.NewUniswapX(routeprovider.UniswapXConfig{
			BaseURL: cfg.Providers.UniswapXBaseURL,
			APIKey:  cfg.Providers.UniswapXAPIKey,
			Timeout: cfg.Providers.HTTPTimeout,
		}),
	)

	var bridgeProvider usecases.BridgeProvider
	if cfg.Bridge.OneClickBaseURL != "" {
		bridgeProvider = bridge.NewOneClick(bridge.Config{
			BaseURL: cfg.Bridge.OneClickBaseURL,
			JWT:     cfg.Bridge.OneClickJWT,
			Timeout: cfg.Providers.HTTPTimeout,
		})
	}

	ledger := usecases.NewIntentLedger(intentRepo, usecases.StuckPolicy{
		Validating: cfg.Swap.ValidatingStuckAfter,
		Other:      cfg.Swap.StuckAfter,
	})
	fees := usecases.NewFeeCalculator(cfg.Swap.FeeBps, entities.FeeSide(cfg.Swap.FeeSide))

	vault := usecases.NewKeyVault(usecases.KeyVaultDeps{
		Keys:      walletKeyRepo,
		Metadata:  walletMetaRepo,
		Addresses: addressRepo,
		Events:    securityRepo,
		UoW:       uow,
		Balances:  chain,
		Assets:    assets,
		Chain:     cfg.Blockchain.ChainName,
		Metrics:   swapMetrics,
	})

	quoteUsecase := usecases.NewQuoteUsecase(quoteRepo, priceOracle, assets, fees, usecases.QuoteSettings{
		SlippageBps:        cfg.Swap.SlippageBps,
		Validity:           cfg.Swap.QuoteValidity,
		IndicativeValidity: cfg.Swap.IndicativeValidity,
	}, swapMetrics)

	swapUsecase := usecases.NewSwapUsecase(usecases.SwapDeps{
		Quotes:        quoteRepo,
		Transactions:  txRepo,
		Fees:          feeRepo,
		FailedRecords: failedRepo,
		Ledger:        ledger,
		Signer:        vault,
		Router:        router,
		Assets:        assets,
		Events:        publisher,
		Metrics:       swapMetrics,
	}, usecases.SwapSettings{
		ChainID:             cfg.Blockchain.ChainID,
		SlippageBps:         cfg.Swap.SlippageBps,
		PollInterval:        cfg.Swap.PollInterval,
		PollAttempts:        cfg.Swap.PollAttempts,
		PersistAttempts:     cfg.Swap.PersistAttempts,
		PersistBackoff:      cfg.Swap.PersistBackoff,
		MaxReconcileRetries: cfg.Reconciliation.MaxRetries,
	})

	deploymentUsecase, err := usecases.NewDeploymentUsecase(deploymentRepo, chain, cfg.Blockchain.OwnerPrivateKey)
	if err != nil {
		return fail(err)
	}

	if cfg.Reconciliation.Enabled {
		reconciler := usecases.NewReconciliationUsecase(usecases.ReconciliationDeps{
			Quotes:        quoteRepo,
			Transactions:  txRepo,
			Fees:          feeRepo,
			FailedRecords: failedRepo,
			Ledger:        ledger,
			Router:        router,
			Events:        publisher,
			Metrics:       swapMetrics,
		}, cfg.Reconciliation.BatchSize)
		a.recon = jobs.NewReconciliationJob(reconciler, cfg.Reconciliation.Interval)
	}

	checks := map[string]handlers.Pinger{
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			c := redis.GetClient()
			if c == nil {
				return redis.ErrNotConfigured
			}
			return c.Ping(ctx).Err()
		}),
	}
	if dbHealth != nil {
		checks["database"] = dbHealth
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware("/health", "/metrics"))
	applyCORSMiddleware(r, cfg.Server.AllowedOrigins)

	registerRoutes(r, routeDeps{
		quoteHandler:       handlers.NewQuoteHandler(quoteUsecase),
		swapHandler:        handlers.NewSwapHandler(swapUsecase),
		walletHandler:      handlers.NewWalletHandler(vault),
		bridgeHandler:      handlers.NewBridgeHandler(usecases.NewBridgeUsecase(bridgeProvider, cfg.Bridge.DefaultChain, cfg.Swap.SlippageBps)),
		deploymentHandler:  handlers.NewDeploymentHandler(deploymentUsecase),
		transactionHandler: handlers.NewTransactionHandler(usecases.NewTransactionUsecase(txRepo)),
		healthHandler:      handlers.NewHealthHandler(checks),
		authMiddleware:     middleware.AuthMiddleware(jwtService),
		rateLimit:          limiter.Middleware(),
		metrics:            promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	})

	a.router = r
	return a, nil
}

func drainNATS(conn *nats.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
	}
}
