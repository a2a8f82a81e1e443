package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fashion-store/config"
	"fashion-store/models"
	"fashion-store/repository"
	"fashion-store/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.App{
		Name:   "fashion-store",
		Usage:  "online fashion store API",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: serve,
			},
			{
				Name:  "promote-admin",
				Usage: "give a user the admin role",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "email of the user", Required: true},
				},
				Action: promoteAdmin,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("fashion-store stopped")
	}
}

// environment is what every command needs: configuration, a logger and the database
type environment struct {
	cfg    *config.Config
	log    *logrus.Logger
	client *mongo.Client
	store  *repository.Store
}

func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	utils.JwtKey = []byte(cfg.JWTSecret)

	client, err := utils.ConnectDB(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	log.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")
	return &environment{
		cfg:    cfg,
		log:    log,
		client: client,
		store:  repository.New(client.Database(cfg.MongoDatabase)),
	}, nil
}

func (e *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.client.Disconnect(ctx); err != nil {
		e.log.WithError(err).Warn("MongoDB disconnect failed")
	}
}

func serve(c *cli.Context) error {
	env, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.store.EnsureIndexes(c.Context); err != nil {
		return err
	}

	srv, err := newServer(c.Context, env)
	if err != nil {
		return err
	}
	defer srv.close()

	httpServer := &http.Server{
		Addr:              ":" + env.cfg.Port,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		env.log.WithField("addr", httpServer.Addr).Info("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			env.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	waitForKillSignal(env.log)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	env.log.Info("server stopped")
	return nil
}

func waitForKillSignal(log logrus.FieldLogger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	switch <-ch {
	case os.Interrupt:
		log.Info("Got SIGINT...")
	case syscall.SIGTERM:
		log.Info("Got SIGTERM...")
	}
}

func promoteAdmin(c *cli.Context) error {
	env, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer env.close()

	email := c.String("email")
	if err := env.store.Users.SetRole(c.Context, email, models.RoleAdmin); err != nil {
		return errors.Wrapf(err, "promote %s", email)
	}
	env.log.WithField("email", email).Info("user promoted to admin")
	return nil
}
