package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Process holds what every long-running binary opens at startup.
// Close releases resources in reverse order of acquisition.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []namedCloser
	exit    func(int)
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env and config, builds the leveled logger, opens the database
// and applies dev migrations.
func Start(ctx context.Context, name string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: name, Instance: instance.GetID()})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = name

	p := &Process{
		Name:   name,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: name,
			Instance:    instance.GetID(),
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
		exit: os.Exit,
	}

	dbClient, err := db.New(ctx, cfg.DB, p.Logger)
	if err != nil {
		return nil, err
	}
	p.DB = dbClient
	p.track("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, p.Logger, dbClient); err != nil {
		p.Close(ctx)
		return nil, err
	}
	return p, nil
}

// Redis opens the shared redis client and registers it for Close.
func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, err
	}
	p.track("redis", client.Close)
	return client, nil
}

func (p *Process) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, err
	}
	p.track("pubsub", client.Close)
	return client, nil
}

func (p *Process) track(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

func (p *Process) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "error closing resource", err)
		}
	}
	p.closers = nil
}

// Fatal logs, releases resources and exits non-zero.
func (p *Process) Fatal(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	p.Close(ctx)
	p.exit(1)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// StartOrExit is Start for main functions: failures end the process.
func StartOrExit(name string) *Process {
	p, err := Start(context.Background(), name)
	if err != nil {
		logger.New(logger.Options{ServiceName: name, Instance: instance.GetID()}).
			Error(context.Background(), "failed to bootstrap "+name, err)
		os.Exit(1)
	}
	return p
}
