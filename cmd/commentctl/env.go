package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/adrg/xdg"

	"recipeshare/internal/cache"
	"recipeshare/internal/config"
	"recipeshare/internal/database"
	fbapp "recipeshare/internal/firebase"
	"recipeshare/internal/panel"
	"recipeshare/internal/queue"
	"recipeshare/internal/repository"
)

const envFileName = "recipeshare/commentctl.env"

// cliEnv holds what a panel needs, opened from the server's configuration.
type cliEnv struct {
	deps    panel.Deps
	cfg     panel.Config
	closers []func() error
}

func (e *cliEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// loadConfig reads envFile, else the per-user env file when one exists, else .env.
func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.LoadConfig(envFile)
	}
	if path, err := xdg.SearchConfigFile(envFileName); err == nil {
		return config.LoadConfig(path)
	}
	return config.LoadConfig()
}

func openEnv(ctx context.Context, envFile string) (*cliEnv, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, err
	}

	env := &cliEnv{cfg: panel.Config{
		PageSize:      cfg.CommentPageSize,
		AnonymousName: cfg.AnonymousName,
	}}

	var app *firebase.App
	if cfg.Docstore == config.DocstoreFirestore {
		app, err = fbapp.NewApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey)
		if err != nil {
			return nil, err
		}
	}

	store, err := database.OpenStore(ctx, cfg, app)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	env.closers = append(env.closers, store.Close)

	env.deps.Comments = repository.NewCommentRepository(store)
	env.deps.Profiles = repository.NewProfileRepository(store)

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		env.closers = append(env.closers, client.Close)
		env.deps.Profiles = cache.NewCachedProfileRepository(env.deps.Profiles, cache.NewNameCache(client, cfg.NameCacheTTL))
		env.deps.Publisher = queue.NewPublisher(client)
	}
	return env, nil
}
