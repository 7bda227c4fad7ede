// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/unitable/internal/backend"
	"github.com/hitoshi/unitable/internal/bus"
	"github.com/hitoshi/unitable/internal/cache"
	"github.com/hitoshi/unitable/internal/config"
	"github.com/hitoshi/unitable/internal/database"
	"github.com/hitoshi/unitable/internal/fetch"
	"github.com/hitoshi/unitable/internal/handler"
	"github.com/hitoshi/unitable/internal/ics"
	"github.com/hitoshi/unitable/internal/logger"
	"github.com/hitoshi/unitable/internal/metrics"
	"github.com/hitoshi/unitable/internal/middleware"
	"github.com/hitoshi/unitable/internal/security"
	syncengine "github.com/hitoshi/unitable/internal/sync"
	"github.com/hitoshi/unitable/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("dev_backend", cfg.DevBackend),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// components は同期エンジンとその依存をまとめた構造体。
// serveとworkerの両モードで同じワイヤリングを共有する。
type components struct {
	db      *sql.DB
	engine  *syncengine.Engine
	fetcher *fetch.Fetcher
	backend backend.Client
	meta    *cache.MetaCache
	bus     *bus.Bus
	reg     *prometheus.Registry
}

// buildComponents はDB接続を開き、同期エンジンまでの全依存を構築する。
func buildComponents(cfg *config.Config) (*components, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	log := slog.Default()

	// 永続キャッシュ
	store := cache.NewPostgresStore(db)
	eventCache := cache.NewEventCache(store, log)
	subCache := cache.NewSubscriptionCache(store, log)
	metaCache := cache.NewMetaCache(store, log)

	// バックエンドクライアント
	var backendClient backend.Client
	if cfg.DevBackend {
		slog.Warn("開発用インメモリバックエンドを使用します")
		backendClient = backend.NewDevClient()
	} else {
		backendClient = backend.NewHTTPClient(cfg.BackendBaseURL, cfg.FetchTimeout, log)
	}

	// フィードフェッチャー
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("タイムゾーンの読み込みに失敗しました。ローカル時刻を使用します",
			slog.String("timezone", cfg.Timezone),
			slog.String("error", err.Error()),
		)
		loc = time.Local
	}
	fetcher := fetch.NewFetcher(
		security.NewSSRFGuard(),
		security.NewTextSanitizer(),
		ics.NewParser(loc),
		rate.NewLimiter(rate.Limit(cfg.FetchRatePerSec), 1),
		log,
		cfg.FetchTimeout,
		cfg.FetchMaxSize,
	)

	// メトリクスと同期エンジン
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	engine := syncengine.NewEngine(backendClient, fetcher, eventCache, subCache, metaCache, collector, log)

	return &components{
		db:      db,
		engine:  engine,
		fetcher: fetcher,
		backend: backendClient,
		meta:    metaCache,
		bus:     bus.NewBus(log),
		reg:     reg,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// 変更通知を受けたユーザーをバックグラウンドで再同期する
	unsubscribe := c.bus.Subscribe(func(req bus.SyncRequest) {
		go c.engine.Refresh(context.Background(), req.UserID)
	})
	defer unsubscribe()

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Gatherer:    c.reg,
		Syncer:      c.engine,
		Backend:     c.backend,
		Verifier:    c.fetcher,
		Meta:        c.meta,
		Publisher:   c.bus,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 定期リフレッシュスケジューラを起動し、APIサーバーは持たない。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	scheduler := refresh.NewScheduler(c.engine, c.bus, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
	)

	// リフレッシュスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
