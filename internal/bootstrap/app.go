// Package bootstrap 读取配置并把所有组件装配成一个可运行的应用。
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	statushttp "github.com/fflughiraeth/srpusher/internal/handler/http"
	wshandler "github.com/fflughiraeth/srpusher/internal/handler/websocket"
	"github.com/fflughiraeth/srpusher/internal/hook"
	"github.com/fflughiraeth/srpusher/internal/hub"
	gormpersistence "github.com/fflughiraeth/srpusher/internal/infra/persistence/gorm"
	redisstate "github.com/fflughiraeth/srpusher/internal/infra/state/redis"
	"github.com/fflughiraeth/srpusher/internal/infra/setup"
	"github.com/fflughiraeth/srpusher/internal/notify"
	"github.com/fflughiraeth/srpusher/internal/observer"
	"github.com/fflughiraeth/srpusher/internal/service"
	"github.com/fflughiraeth/srpusher/internal/upstream"
	"github.com/fflughiraeth/srpusher/internal/worker"
)

// Config 是进程级基础设施配置，全部来自环境变量。
type Config struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	MySQLUser     string
	MySQLPassword string
	MySQLHost     string
	MySQLPort     string
	MySQLDB       string

	TelegramToken  string
	TelegramChatID int64
	NotifyQueue    bool

	NatsURL           string
	NatsSubjectPrefix string

	StatusAddr string
	AppEnv     string
	LogLevel   string
}

// Options 是命令行开关。
type Options struct {
	RulesPath      string
	DisableNotify  bool
	DisablePlugins bool
	Quiet          bool
	Debug          bool
}

// LoadConfig 读取 .env (存在时) 和环境变量。
func LoadConfig() (*Config, error) {
	// .env 是可选的，容器环境直接注入变量。
	_ = godotenv.Load()

	cfg := &Config{
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisKeyPrefix:    envDefault("REDIS_KEY_PREFIX", "srp:"),
		MySQLUser:         envDefault("MYSQL_USER", "root"),
		MySQLPassword:     os.Getenv("MYSQL_PASSWORD"),
		MySQLHost:         envDefault("MYSQL_HOST", "127.0.0.1"),
		MySQLPort:         envDefault("MYSQL_PORT", "3306"),
		MySQLDB:           os.Getenv("MYSQL_DB"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		NatsURL:           os.Getenv("NATS_URL"),
		NatsSubjectPrefix: envDefault("NATS_SUBJECT_PREFIX", "srpusher"),
		StatusAddr:        envDefault("STATUS_ADDR", "127.0.0.1:8089"),
		AppEnv:            envDefault("APP_ENV", "development"),
		LogLevel:          envDefault("LOG_LEVEL", "info"),
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("bootstrap: REDIS_ADDR is required")
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = db
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.TelegramChatID = id
	}
	if v := os.Getenv("NOTIFY_QUEUE"); v != "" {
		queue, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: invalid NOTIFY_QUEUE %q: %w", v, err)
		}
		cfg.NotifyQueue = queue
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewLogger 按环境配置 logrus：开发环境文本格式，生产环境 JSON。
func NewLogger(cfg *Config, opts Options) *logrus.Logger {
	logger := logrus.New()
	if cfg.AppEnv == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// App 持有装配好的全部组件和它们的清理函数。
type App struct {
	Watcher *service.Watcher

	log         *logrus.Logger
	hub         *hub.Hub
	hubStop     context.CancelFunc
	statusSrv   *http.Server
	workerSrv   *worker.WorkerServer
	asynqClient *asynq.Client
	natsPub     *observer.NatsPublisher
}

// NewApp 按配置装配监视器、观察者、通知 sink 和外围服务。
func NewApp(cfg *Config, rules *Rules, opts Options, logger *logrus.Logger) (*App, error) {
	app := &App{log: logger}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	state := redisstate.NewRedisStateRepository(redisClient, cfg.RedisKeyPrefix)

	// 上游快照源。备用源可不配置。
	fetcher := upstream.NewClient(rules.SR.APIURL, rules.SR.HTTPUserAgent, 30*time.Second, logger)
	snapshots := service.NewSnapshotCache(fetcher, service.DefaultFreshWindow, logger)
	var option *service.SnapshotCache
	if rules.SR.OptionAPIURL != "" {
		optionFetcher := upstream.NewClient(rules.SR.OptionAPIURL, rules.SR.HTTPUserAgent, 30*time.Second, logger)
		option = service.NewSnapshotCache(optionFetcher, service.DefaultFreshWindow, logger)
	}

	retain := rules.Global.RetainCurrentSets || rules.Global.Debug || opts.Debug
	presence := service.NewPresenceService(state, retain, logger)
	keywords := service.NewKeywordMatcher(state, service.KeywordRules{
		Keywords:        rules.SR.TargetKeywords,
		KeywordsExclude: rules.SR.TargetKeywordsExclude,
		MembersExclude:  rules.SR.TargetsExclude,
	}, logger)
	pacing := service.NewPacingController(state, service.PacingConfig{
		BaseWaitSec:  rules.SR.BaseWaitSec,
		Multiplier:   rules.SR.WaitMultiplier,
		InterceptSec: rules.SR.WaitIntercept,
		MinWaitSec:   rules.SR.MinWaitSec,
		JitterMu:     rules.SR.JitterMu,
		JitterSigma:  rules.SR.JitterSigma,
		TimeConstant: rules.SR.SmoothingTimeConstant,
	}, logger)

	sink, err := app.buildSink(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := hook.NewDispatcher(logger)
	telemetry := observer.NewTelemetry()
	dispatcher.Register(telemetry)
	if !opts.Quiet {
		dispatcher.Register(observer.NewConsole(logger))
	}
	if !opts.DisablePlugins {
		if err := app.registerPlugins(cfg, dispatcher, logger); err != nil {
			return nil, err
		}
	}

	app.Watcher = service.NewWatcher(
		snapshots, option, state, presence, keywords, pacing, dispatcher, sink,
		service.WatchRules{
			Targets:        rules.SR.Targets,
			TargetsExclude: rules.SR.TargetsExclude,
		},
		logger,
	)

	if cfg.StatusAddr != "" {
		app.buildStatusServer(cfg, telemetry, logger)
	}

	logger.WithFields(logrus.Fields{
		"observers": dispatcher.Observers(),
		"retain":    retain,
	}).Info("Application assembled")
	return app, nil
}

// buildSink 选择通知通道：队列模式、直连 Telegram 或禁用。
func (a *App) buildSink(cfg *Config, opts Options, logger *logrus.Logger) (notify.Sink, error) {
	if opts.DisableNotify {
		logger.Info("Notifications disabled by flag")
		return notify.Disabled{}, nil
	}

	telegram, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		return nil, err
	}

	if cfg.NotifyQueue {
		// 队列模式：周期内只入队，由后台 worker 实际投递。
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		a.asynqClient = asynq.NewClient(redisOpt)
		var deliverTo notify.Sink = notify.Disabled{}
		if telegram != nil {
			deliverTo = telegram
		}
		a.workerSrv = worker.NewWorkerServer(redisOpt, deliverTo, logger)
		return notify.NewQueuedSink(a.asynqClient, logger), nil
	}

	if telegram == nil {
		logger.Info("Telegram not configured, notifications disabled")
		return notify.Disabled{}, nil
	}
	return telegram, nil
}

// registerPlugins 装配可选观察者：历史记录、NATS 发布、事件流。
func (a *App) registerPlugins(cfg *Config, dispatcher *hook.Dispatcher, logger *logrus.Logger) error {
	if cfg.MySQLDB != "" {
		db, err := setup.InitDB(cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDB)
		if err != nil {
			return err
		}
		if err := setup.MigrateDB(db); err != nil {
			return err
		}
		history := gormpersistence.NewGormHistoryRepository(db)
		dispatcher.Register(observer.NewRecorder(history, logger))
	}

	if cfg.NatsURL != "" {
		pub, err := observer.NewNatsPublisher(cfg.NatsURL, cfg.NatsSubjectPrefix, logger)
		if err != nil {
			return err
		}
		a.natsPub = pub
		dispatcher.Register(pub)
	}

	if cfg.StatusAddr != "" {
		a.hub = hub.NewHub(logger)
		dispatcher.Register(observer.NewStream(a.hub, logger))
	}
	return nil
}

func (a *App) buildStatusServer(cfg *Config, telemetry *observer.Telemetry, logger *logrus.Logger) {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	status := statushttp.NewStatusHandler(telemetry, a.hub)
	r.GET("/ping", status.Ping)
	r.GET("/status", status.Status)
	if a.hub != nil {
		ws := wshandler.NewHandler(a.hub, logger)
		r.GET("/ws", ws.Stream)
	}

	a.statusSrv = &http.Server{Addr: cfg.StatusAddr, Handler: r}
}

// Start 启动外围 goroutine：Hub、状态接口、通知 worker。
// 核心轮询循环由调用方通过 Watcher 驱动。
func (a *App) Start() error {
	if a.hub != nil {
		hubCtx, cancel := context.WithCancel(context.Background())
		a.hubStop = cancel
		go a.hub.Run(hubCtx)
	}
	if a.statusSrv != nil {
		go func() {
			a.log.WithField("addr", a.statusSrv.Addr).Info("Status server starting")
			if err := a.statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.WithError(err).Error("Status server failed")
			}
		}()
	}
	if a.workerSrv != nil {
		if err := a.workerSrv.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown 按依赖的反序优雅停止外围服务。
func (a *App) Shutdown() {
	if a.statusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.statusSrv.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("Status server shutdown failed")
		}
	}
	if a.hubStop != nil {
		a.hubStop()
	}
	if a.workerSrv != nil {
		a.workerSrv.Shutdown()
	}
	if a.asynqClient != nil {
		if err := a.asynqClient.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close asynq client")
		}
	}
	if a.natsPub != nil {
		a.natsPub.Close()
	}
	a.log.Info("Shutdown complete")
}
