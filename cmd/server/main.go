package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricefeed/internal/bot"
	"pricefeed/internal/cache"
	"pricefeed/internal/config"
	"pricefeed/internal/db"
	"pricefeed/internal/handler"
	"pricefeed/internal/job"
	"pricefeed/internal/provider"
	"pricefeed/internal/repository"
	"pricefeed/internal/service"
	"pricefeed/internal/stream"
	"pricefeed/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "pricefeed/docs"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	closePostgresFunc = db.Close
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newFetcherFunc    = func(tracer trace.Tracer, cfg *config.Config) service.TickerFetcher {
		return provider.NewBinanceProvider(tracer,
			provider.WithBaseURL(cfg.BinanceBaseURL),
			provider.WithFetchTimeout(cfg.FetchTimeout()),
			provider.WithQuoteSuffix(cfg.QuoteSuffix),
			provider.WithMaxTickers(cfg.MaxTickers),
		)
	}
	startPollerFunc        = func(p *job.PricePoller, ctx context.Context) { go p.Start(ctx) }
	startWriterFunc        = func(w *job.PriceWriter, ctx context.Context) { go w.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

// @title           Pricefeed API
// @version         1.0
// @description     Binance price aggregation with caching, fallback and a GOLD reference price.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		fatal(logger, "failed to initialize tracer", err)
		return
	}

	var opts []service.PriceServiceOption

	// History is optional: no database means no writer and a 503 history route.
	var history handler.HistoryReader
	if err := initPostgresFunc(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn("postgres unavailable, price history disabled", slog.Any("err", err))
	}
	if db.Pool != nil {
		repo := repository.NewPriceRepository(db.Pool, tracer)
		if err := repo.RunMigrations(ctx); err != nil {
			fatal(logger, "failed to run migrations", err)
			return
		}
		writer := job.NewPriceWriter(tracer, repo, cfg.WriterQueueSize)
		startWriterFunc(writer, ctx)
		opts = append(opts, service.WithSnapshotSink(writer))
		history = repo
	}

	if cfg.RedisEnabled {
		if err := initRedisFunc(ctx, cfg.RedisURL); err != nil {
			logger.Warn("redis unavailable, snapshot mirror disabled", slog.Any("err", err))
		}
	}
	if cache.Client != nil {
		opts = append(opts, service.WithSnapshotMirror(cache.NewSnapshotStore(cache.Client, tracer)))
	}

	opts = append(opts,
		service.WithCacheTTL(cfg.CacheTTL()),
		service.WithBackoff(cfg.RateLimitBackoff()),
	)
	limiter := provider.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
	priceService := service.NewPriceService(tracer, newFetcherFunc(tracer, cfg), limiter, opts...)
	aggregator := service.NewAggregator(tracer, priceService, provider.NewGoldProvider(cfg.GoldPriceUSD), cfg.AggregateTimeout())

	hub := stream.NewHub()
	poller := job.NewPricePoller(tracer, aggregator, hub, cfg.PollSecs)
	startPollerFunc(poller, ctx)

	telegram, err := startTelegramBotFunc(cfg.TelegramBotToken, aggregator)
	if err != nil {
		logger.Warn("telegram bot disabled", slog.Any("err", err))
	}

	h := handler.New(tracer, aggregator, history, hub)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(tracing.ServiceName))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "listen", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("shutting down server")

	cancel()
	if telegram != nil {
		telegram.Stop()
	}
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	if cache.Client != nil {
		_ = cache.Client.Close()
	}
	closePostgresFunc()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down tracer provider", slog.Any("err", err))
	}

	logger.Info("server exiting")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("err", err))
	exitFunc(1)
}
