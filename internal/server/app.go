// Package server wires the vpnkeeper process: it opens the database, applies
// schema and startup migrations, and runs the Telegram bot alongside the
// gRPC health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vpnkeeper/internal/filex"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/artifacts"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/bot"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/config"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/services"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/startup"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/telegram"

	gs "github.com/dmitrijs2005/vpnkeeper/internal/server/grpc"
)

// pollSlack is added to the long-poll timeout for the HTTP client deadline.
const pollSlack = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rm     repomanager.RepositoryManager
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	if c.BotToken == "" {
		return nil, fmt.Errorf("bot token is not set")
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{config: c, logger: logger, db: db, rm: repomanager.NewPostgresRepositoryManager()}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) newArtifactStore(ctx context.Context) (artifacts.Store, error) {
	switch app.config.ArtifactStore {
	case "s3":
		return artifacts.NewS3Store(ctx, artifacts.S3Options{
			AccessKey:    app.config.S3RootUser,
			SecretKey:    app.config.S3RootPassword,
			Bucket:       app.config.S3Bucket,
			Region:       app.config.S3Region,
			BaseEndpoint: app.config.S3BaseEndpoint,
		})
	case "file", "":
		dir, err := filex.EnsureDir(app.config.QRDir)
		if err != nil {
			return nil, err
		}
		return artifacts.NewFileStore(dir), nil
	}
	return nil, fmt.Errorf("unknown artifact store %q", app.config.ArtifactStore)
}

// prepare applies schema migrations and startup routines.
func (app *App) prepare(ctx context.Context, ledger *services.LedgerService) error {
	if err := app.rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}
	return startup.SeedServers(ctx, ledger, app.rm, app.config.Servers, app.config.VLESS.Port, app.logger)
}

func (app *App) newBot(ctx context.Context) (*bot.Bot, error) {
	store, err := app.newArtifactStore(ctx)
	if err != nil {
		return nil, err
	}

	tg, err := telegram.NewClient(app.config.TelegramAPIURL, app.config.BotToken, &http.Client{
		Timeout: app.config.PollTimeout + pollSlack,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram init error: %w", err)
	}

	allow := services.NewAllowList(app.config.AdminIDs)
	gate := services.NewGateService(app.db, app.rm, tg, allow, app.config.ChannelID, app.logger)
	keys := services.NewKeyService(app.db, app.rm, artifacts.NewGenerator(store, app.config.VLESS),
		app.config.MaxKeysPerUser, app.logger)
	servers := services.NewServerService(app.db, app.rm, app.logger)
	groups := services.NewGroupService(app.db, app.rm, app.logger)

	return bot.New(tg, gate, keys, servers, groups, store, bot.Options{
		ChannelID:   app.config.ChannelID,
		PollTimeout: app.config.PollTimeout,
		Workers:     app.config.Workers,
	}, app.logger), nil
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	defer app.db.Close()

	app.initSignalHandler(cancelFunc)

	if err := app.prepare(ctx, services.NewLedgerService(app.db, app.rm, app.logger)); err != nil {
		return err
	}

	b, err := app.newBot(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db, 0)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
		cancelFunc()
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
