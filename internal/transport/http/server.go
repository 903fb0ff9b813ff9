package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"

	"recipeshare/internal/cache"
	"recipeshare/internal/config"
	"recipeshare/internal/database"
	fbapp "recipeshare/internal/firebase"
	"recipeshare/internal/handler"
	"recipeshare/internal/panel"
	"recipeshare/internal/push"
	"recipeshare/internal/queue"
	"recipeshare/internal/repository"
	authmw "recipeshare/internal/transport/http/middleware"
	"recipeshare/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Firebase, needed by the Firestore backend, Firebase Auth and FCM
	var app *firebase.App
	if cfg.Docstore == config.DocstoreFirestore || cfg.AuthMode == config.AuthModeFirebase || cfg.PushEnabled {
		app, err = fbapp.NewApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey)
		if err != nil {
			return err
		}
	}

	// 3. Open the document store
	store, err := database.OpenStore(ctx, cfg, app)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer store.Close()

	commentRepo := repository.NewCommentRepository(store)
	itemRepo := repository.NewItemRepository(store)
	notifRepo := repository.NewNotificationRepository(store)
	deviceRepo := repository.NewDeviceTokenRepository(store)
	var profileRepo repository.ProfileRepository = repository.NewProfileRepository(store)

	// 4. Redis: name cache, comment events and notification workers
	var publisher queue.Publisher
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		profileRepo = cache.NewCachedProfileRepository(profileRepo, cache.NewNameCache(redisClient, cfg.NameCacheTTL))
		publisher = queue.NewPublisher(redisClient)

		if cfg.WorkerEnabled {
			eventHandler := worker.NewHandler(itemRepo, commentRepo, notifRepo)
			if cfg.PushEnabled {
				fcm, err := push.NewFCMClient(ctx, app)
				if err != nil {
					return err
				}
				eventHandler.WithPush(deviceRepo, profileRepo, push.NewDispatcher(fcm, push.NewExpoClient(cfg.ExpoPushURL)))
			}

			workerCfg := worker.DefaultManagerConfig()
			workerCfg.WorkerCount = cfg.WorkerCount
			workers := worker.NewManager(queue.NewConsumer(redisClient), eventHandler, workerCfg)
			if err := workers.Start(ctx); err != nil {
				return fmt.Errorf("failed to start workers: %w", err)
			}
			defer workers.Stop()
		}
	} else {
		log.Println("REDIS_URL not set: name cache, comment events and notifications disabled")
	}

	// 5. Identity
	verifier, err := newVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	// 6. Comment panels
	panels := panel.NewManager(panel.Deps{
		Comments:  commentRepo,
		Profiles:  profileRepo,
		Publisher: publisher,
	}, panel.Config{
		PageSize:      cfg.CommentPageSize,
		AnonymousName: cfg.AnonymousName,
	}, cfg.PanelIdleTTL)
	panels.Start(ctx)
	defer panels.Stop()

	// 7. Setup Server
	router := NewRouter(RouterConfig{
		PanelHandler:        handler.NewPanelHandler(panels),
		NotificationHandler: handler.NewNotificationHandler(notifRepo),
		DeviceHandler:       handler.NewDeviceHandler(deviceRepo),
		Verifier:            verifier,
	})
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (authmw.TokenVerifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get firebase auth client: %w", err)
		}
		return authmw.NewFirebaseVerifier(client), nil
	case config.AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("AUTH_MODE=jwt needs JWT_SECRET")
		}
		return authmw.NewJWTVerifier(cfg.JWTSecret), nil
	}
	return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
}
