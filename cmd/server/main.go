package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/arena"
	"github.com/Drix10/hypothesis-arena-sub001/internal/config"
	"github.com/Drix10/hypothesis-arena-sub001/internal/exchange"
	"github.com/Drix10/hypothesis-arena-sub001/internal/handler"
	"github.com/Drix10/hypothesis-arena-sub001/internal/middleware"
	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/oracle"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/Drix10/hypothesis-arena-sub001/internal/repository"
	"github.com/Drix10/hypothesis-arena-sub001/internal/risk"
	"github.com/Drix10/hypothesis-arena-sub001/internal/service"
	"github.com/Drix10/hypothesis-arena-sub001/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	// Usage repo: Redis preferred, memory fallback.
	var usage arena.UsageRepo
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisRepo := repository.NewRedisUsageRepo(rdb)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisRepo.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, using in-memory usage tracking", "error", err)
		usage = repository.NewMemoryUsageRepo()
	} else {
		usage = redisRepo
	}
	cancelPing()

	// Decision history: Postgres preferred, ring buffer fallback.
	var store service.DecisionStore
	if cfg.Database.DSN != "" {
		db, err := repository.OpenPostgres(cfg.Database.DSN)
		if err != nil {
			logger.Warn("postgres unreachable, decisions kept in memory only", "error", err)
		} else if repo, err := repository.NewDecisionRepo(db); err != nil {
			logger.Warn("decision table migration failed", "error", err)
		} else {
			store = repo
		}
	}
	audit := service.NewAuditService(store)

	creds := exchange.Credentials{
		Key:        cfg.Exchange.ApiKey,
		Secret:     cfg.Exchange.ApiSecret,
		Passphrase: cfg.Exchange.ApiPassphrase,
	}
	client := exchange.NewClient(exchange.Options{
		BaseURL:     cfg.Exchange.BaseURL,
		Credentials: creds,
		Timeout:     time.Duration(cfg.Exchange.TimeoutMs) * time.Millisecond,
		Conn: exchange.BucketConfig{
			Capacity:   cfg.Exchange.ConnCapacity,
			RefillRate: cfg.Exchange.ConnRefillRate,
		},
		Account: exchange.BucketConfig{
			Capacity:   cfg.Exchange.AccountCapacity,
			RefillRate: cfg.Exchange.AccountRefillRate,
		},
		Order: exchange.BucketConfig{
			Capacity:   cfg.Exchange.OrderCapacity,
			RefillRate: cfg.Exchange.OrderRefillRate,
		},
		ComplianceWordCap: cfg.Arena.ComplianceWords,
	})

	breaker := risk.NewBreaker(risk.BreakerThresholds{
		YellowMovePct: cfg.Breaker.YellowMovePct, OrangeMovePct: cfg.Breaker.OrangeMovePct, RedMovePct: cfg.Breaker.RedMovePct,
		YellowDrawdownPct: cfg.Breaker.YellowDrawdownPct, OrangeDrawdownPct: cfg.Breaker.OrangeDrawdownPct, RedDrawdownPct: cfg.Breaker.RedDrawdownPct,
		YellowFundingPct: cfg.Breaker.YellowFundingPct, OrangeFundingPct: cfg.Breaker.OrangeFundingPct, RedFundingPct: cfg.Breaker.RedFundingPct,
	}, cfg.Risk.ConfiguredLeverageCap)

	hub := stream.NewHub(stream.Config{
		MaxSubscriptions: cfg.Stream.MaxSubscriptions,
		MaxFrameBytes:    int64(cfg.Stream.MaxFrameBytes),
		PingInterval:     time.Duration(cfg.Stream.PingIntervalSec) * time.Second,
		PongWait:         time.Duration(cfg.Stream.PongTimeoutSec) * time.Second,
		ShutdownWait:     time.Duration(cfg.Stream.ShutdownTimeoutMs) * time.Millisecond,
	}, creds)

	oracleClient := oracle.NewClient(cfg.Oracle.BaseURL, time.Duration(cfg.Oracle.TimeoutMs)*time.Millisecond)

	pipeline := arena.NewPipeline(arena.PipelineConfig{
		Selectors:       cfg.Arena.Selectors,
		Universe:        cfg.Arena.Universe,
		BenchmarkSymbol: cfg.Breaker.BenchmarkSymbol,
		StageTimeout:    time.Duration(cfg.Arena.StageTimeoutMs) * time.Millisecond,
		BatchInterval:   time.Duration(cfg.Arena.BatchIntervalMs) * time.Millisecond,
		MarginMode:      model.MarginMode(cfg.Risk.MarginMode),
		Limits: risk.Limits{
			MaxLeverage:           cfg.Risk.MaxLeverage,
			ConfiguredLeverageCap: cfg.Risk.ConfiguredLeverageCap,
			MaxPositionSizePct:    cfg.Risk.MaxPositionSizePct,
			MinPositionSizePct:    cfg.Risk.MinPositionSizePct,
			BasePositionPct:       cfg.Risk.BasePositionPct,
			MinConfidence:         cfg.Risk.MinConfidence,
			MinAgreement:          cfg.Risk.MinAgreement,
			FallbackTakeProfitPct: cfg.Risk.FallbackTakeProfitPct,
			FallbackStopLossPct:   cfg.Risk.FallbackStopLossPct,
			MaxStopDistancePct:    cfg.Risk.MaxStopDistancePct,
		},
	}, oracleClient, client, breaker, usage, audit, hub)

	router := buildRouter(cfg, pipeline, audit, hub)
	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	// Drain streams first so subscribers see a clean close, then stop HTTP,
	// then flush the audit queue.
	hub.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	audit.Close()
	logger.Info("shutdown complete")
}

func buildRouter(cfg *config.Config, pipeline *arena.Pipeline, audit *service.AuditService, hub *stream.Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Metrics(), middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	decisions := handler.NewDecisionHandler(pipeline, audit)
	v1 := router.Group("/v1")
	{
		v1.POST("/decisions/run", decisions.RunCycle)
		v1.GET("/decisions", decisions.List)
	}

	streamH := handler.NewStreamHandler(hub)
	router.GET("/ws", streamH.Serve)

	return router
}
