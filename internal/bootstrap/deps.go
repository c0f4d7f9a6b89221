// Package bootstrap wires every adapter and service into a running
// process: one dependency graph shared by the HTTP server, the
// background sync/outbox/jobs runner, and the stdio JSON-RPC bridge.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jmoiron/sqlx"

	httpadapter "github.com/aerioncore/mailcore/adapter/in/http"
	"github.com/aerioncore/mailcore/adapter/in/jsonrpc"
	"github.com/aerioncore/mailcore/adapter/out/persistence"
	"github.com/aerioncore/mailcore/adapter/out/provider"
	"github.com/aerioncore/mailcore/adapter/out/realtime"
	"github.com/aerioncore/mailcore/config"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/core/service/account"
	"github.com/aerioncore/mailcore/core/service/events"
	"github.com/aerioncore/mailcore/core/service/jobs"
	"github.com/aerioncore/mailcore/core/service/mail"
	"github.com/aerioncore/mailcore/core/service/oauth"
	"github.com/aerioncore/mailcore/core/service/outbox"
	"github.com/aerioncore/mailcore/core/service/providerregistry"
	"github.com/aerioncore/mailcore/core/service/session"
	"github.com/aerioncore/mailcore/core/service/sync"
	"github.com/aerioncore/mailcore/core/service/tools"
	"github.com/aerioncore/mailcore/internal/imap"
	"github.com/aerioncore/mailcore/internal/smtp"
	"github.com/aerioncore/mailcore/internal/stream"
	"github.com/aerioncore/mailcore/pkg/cache"
	"github.com/aerioncore/mailcore/pkg/crypto"
	"github.com/aerioncore/mailcore/pkg/metrics"
	"github.com/aerioncore/mailcore/pkg/ratelimit"
)

// Dependencies is the fully-wired object graph. API and background-runner
// bootstrap both build one of these and read off the pieces they need.
type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	DB    *pgxpool.Pool
	SQLX  *sqlx.DB
	Redis *redis.Client

	Accounts *account.Service
	Folders  *mail.Service
	Mail     *mail.Service
	OAuth    *oauth.Service
	Outbox   *outbox.Service
	Sessions *session.Service
	Sync     *sync.Service
	Jobs     *jobs.Service
	Events   *events.Service
	Tools    *tools.Registry

	Realtime out.RealtimePort
	IMAPPool *imap.Pool
	Metrics  *metrics.LatencyRegistry
}

// build assembles every adapter and service from cfg. Both NewAPI and
// NewRunner call this; the pgx/redis connections and the IMAP pool are
// closed once by whichever caller's cleanup runs.
func build(cfg *config.Config) (*Dependencies, func(), error) {
	log := zerologFromConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}

	sqlxDB, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: sqlx connect: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		sqlxDB.Close()
		return nil, nil, fmt.Errorf("bootstrap: parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		sqlxDB.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping redis: %w", err)
	}

	cipher, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		pool.Close()
		sqlxDB.Close()
		redisClient.Close()
		return nil, nil, fmt.Errorf("bootstrap: init cipher: %w", err)
	}

	// Persistence adapters
	accountRepo := persistence.NewAccountAdapter(sqlxDB, cipher)
	templateRepo := persistence.NewProviderTemplateAdapter(sqlxDB)
	folderRepo := persistence.NewFolderAdapter(sqlxDB)
	messageRepo := persistence.NewMessageAdapter(sqlxDB)
	syncStateRepo := persistence.NewSyncStateAdapter(sqlxDB)
	attachmentRepo := persistence.NewAttachmentAdapter(sqlxDB)
	outboxRepo := persistence.NewOutboxAdapter(sqlxDB)
	jobRepo := persistence.NewJobAdapter(sqlxDB)
	oauthStateStore := persistence.NewOAuthStateAdapter(redisClient)
	blobStore := persistence.NewFilesystemBlobStore(cfg.BlobBaseDir)

	// Transport factories and connection pool
	imapFactory := imap.NewFactory(log)
	smtpFactory := smtp.NewFactory(log)
	imapPool := imap.NewPool(imapFactory, imap.PoolConfig{
		MaxPerAccount:  cfg.IMAPPoolMaxPerConn,
		IdleTimeout:    cfg.IMAPPoolIdleTimeout,
		ConnectTimeout: 30 * time.Second,
		WaiterTimeout:  15 * time.Second,
	}, log)

	// OAuth provider exchangers
	googleExchanger := provider.NewGoogleExchanger(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	microsoftExchanger := provider.NewMicrosoftExchanger(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret, cfg.MicrosoftRedirectURL)
	exchangerRegistry := provider.NewExchangerRegistry(googleExchanger, microsoftExchanger)

	// Event bus: a process-local ring+fan-out, wrapped in a Redis-stream
	// relay so events reach sessions connected to any other instance.
	localBus := realtime.NewSSEAdapter(log)
	bus := stream.NewDistributedBus(localBus, redisClient, log)
	busCtx, busCancel := context.WithCancel(context.Background())
	go func() {
		if err := bus.Start(busCtx); err != nil {
			log.Error().Err(err).Msg("distributed event bus consume loop failed to start")
		}
	}()

	// Services
	providerRegistrySvc := providerregistry.New(templateRepo, log)
	if err := providerRegistrySvc.Seed(ctx); err != nil {
		log.Warn().Err(err).Msg("provider template seed failed, continuing with existing rows")
	}

	listCache := cache.NewMessageListCache(cache.NewRedisCache(redisClient))

	accountSvc := account.New(accountRepo, templateRepo, cipher, imapFactory, log)
	oauthSvc := oauth.New(accountRepo, oauthStateStore, exchangerRegistry, log)
	eventsSvc := events.New(bus, log)
	mailSvc := mail.New(accountRepo, folderRepo, messageRepo, syncStateRepo, attachmentRepo, blobStore, imapPool, oauthSvc, eventsSvc, listCache, log)
	sendGuard := ratelimit.NewSendProtector(redisClient, ratelimit.DefaultConfig())
	outboxSvc := outbox.New(outboxRepo, accountRepo, smtpFactory, imapFactory, oauthSvc, bus, sendGuard, log)
	syncSvc := sync.New(accountRepo, folderRepo, messageRepo, syncStateRepo, bus, imapPool, oauthSvc, eventsSvc, listCache, log)
	jobsSvc := jobs.New(jobRepo, log)
	sessionSvc := session.New()

	registry := tools.NewRegistry()
	registry.RegisterAll(
		tools.NewListAccountsTool(accountSvc),
		tools.NewSetCurrentAccountTool(sessionSvc, accountSvc),
		tools.NewListFoldersTool(mailSvc, sessionSvc, accountSvc),
		tools.NewListFoldersHierarchicalTool(mailSvc, sessionSvc, accountSvc),
		tools.NewGetFolderStatsTool(mailSvc),
		tools.NewGetEmailByUIDTool(mailSvc),
		tools.NewGetEmailByIndexTool(mailSvc),
		tools.NewCountEmailsInFolderTool(mailSvc),
		tools.NewListCachedEmailsTool(mailSvc),
		tools.NewSearchCachedEmailsTool(mailSvc),
		tools.NewSearchEmailsTool(mailSvc, sessionSvc, accountSvc),
		tools.NewFetchEmailsWithMIMETool(mailSvc, sessionSvc, accountSvc),
		tools.NewAtomicMoveTool(mailSvc, sessionSvc, accountSvc),
		tools.NewAtomicBatchMoveTool(mailSvc, sessionSvc, accountSvc),
		tools.NewMarkAsDeletedTool(mailSvc, sessionSvc, accountSvc),
		tools.NewUndeleteMessagesTool(mailSvc, sessionSvc, accountSvc),
		tools.NewDeleteMessagesTool(mailSvc, sessionSvc, accountSvc),
		tools.NewExpungeTool(mailSvc, sessionSvc, accountSvc),
	)

	deps := &Dependencies{
		Config:   cfg,
		Log:      log,
		DB:       pool,
		SQLX:     sqlxDB,
		Redis:    redisClient,
		Accounts: accountSvc,
		Folders:  mailSvc,
		Mail:     mailSvc,
		OAuth:    oauthSvc,
		Outbox:   outboxSvc,
		Sessions: sessionSvc,
		Sync:     syncSvc,
		Jobs:     jobsSvc,
		Events:   eventsSvc,
		Tools:    registry,
		Realtime: bus,
		IMAPPool: imapPool,
		Metrics:  metrics.NewLatencyRegistry(1000),
	}

	cleanup := func() {
		busCancel()
		imapPool.CloseAll(context.Background())
		pool.Close()
		sqlxDB.Close()
		redisClient.Close()
	}

	return deps, cleanup, nil
}

func zerologFromConfig(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "mailcore").Logger().Level(level)
}

// httpServices adapts Dependencies into the shape adapter/in/http.Mount wants.
func (d *Dependencies) httpServices() httpadapter.Services {
	return httpadapter.Services{
		Accounts: d.Accounts,
		Folders:  d.Folders,
		Mail:     d.Mail,
		OAuth:    d.OAuth,
		Outbox:   d.Outbox,
		Sessions: d.Sessions,
		Realtime: d.Realtime,
		Tools:    d.Tools,
		DB:       d.DB,
		Redis:    d.Redis,
		Log:      d.Log,
		Metrics:  d.Metrics,

		JWTSecret: d.Config.JWTSecret,
	}
}

// NewJSONRPC builds the stdio JSON-RPC bridge over the same tool registry
// and dependency graph the HTTP surface uses.
func NewJSONRPC(cfg *config.Config) (*jsonrpc.Server, func(), error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return nil, nil, err
	}
	return jsonrpc.NewServer(deps.Tools, deps.Sessions, deps.Log), cleanup, nil
}
