package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"campuslink/internal/config"
	"campuslink/internal/db"
	"campuslink/internal/handlers"
	"campuslink/internal/middleware"
	"campuslink/internal/repository"
	"campuslink/internal/router"
	"campuslink/internal/services"
	"campuslink/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	ids, err := utils.NewIDGenerator(cfg.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}
	cache, err := utils.NewCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	// Services
	repair := services.NewCounterRepairService(store, locker, cache, logger.Named("repair"))
	repair.Start(ctx)
	repair.StartScheduled(ctx, cfg.RepairHour)

	voteService := services.NewVoteService(store, locker, cache, logger.Named("vote"))
	rankingService := services.NewRankingService(store, store, cache, logger.Named("ranking"))
	commentService := services.NewCommentService(store, store, repair, locker, ids, cache, logger.Named("comment"))
	postService := services.NewPostService(store, store, ids, cache, logger.Named("post"))
	karmaService := services.NewKarmaService(store, store, store, logger.Named("karma"))
	userService := services.NewUserService(store, store, ids, logger.Named("user"))
	eventService := services.NewEventService(store, store, store, ids, logger.Named("event"))
	groupService := services.NewStudyGroupService(store, store, ids, logger.Named("group"))

	// Initialize Gin
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Setup Sessions
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("campuslink_session", sessionStore))
	r.Use(middleware.LoadUser(userService, cfg.JWTSecret))

	router.RegisterRoutes(r, router.Handlers{
		Health:  handlers.NewHealthHandler(store),
		Auth:    handlers.NewAuthHandler(userService, cfg.JWTSecret, cfg.JWTTTL, logger.Named("auth")),
		Story:   handlers.NewStoryHandler(postService, rankingService, commentService, repair, logger.Named("story")),
		Vote:    handlers.NewVoteHandler(voteService, logger.Named("vote")),
		User:    handlers.NewUserHandler(userService, karmaService, logger.Named("user")),
		College: handlers.NewCollegeHandler(rankingService, logger.Named("college")),
		Event:   handlers.NewEventHandler(eventService, logger.Named("event")),
		Group:   handlers.NewGroupHandler(groupService, logger.Named("group")),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("campuslink server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore 按 STORE_DRIVER 选择 Postgres 或 MongoDB
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoStore(client, cfg.MongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		college := db.DefaultCollege()
		college.CreatedAt = time.Now()
		college.UpdatedAt = college.CreatedAt
		if err := store.SeedCollege(ctx, &college); err != nil {
			return nil, fmt.Errorf("seed college: %w", err)
		}
		return store, nil
	default:
		gdb, err := db.Init(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(gdb), nil
	}
}

// newLocker 配置了 etcd 时使用分布式锁，否则使用进程内锁
func newLocker(cfg *config.Config, logger *zap.Logger) (utils.Locker, func(), error) {
	if len(cfg.EtcdEndpoints) == 0 {
		return utils.NewKeyedMutex(), func() {}, nil
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.EtcdEndpoints,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect etcd: %w", err)
	}
	logger.Info("using etcd vote locks", zap.Strings("endpoints", cfg.EtcdEndpoints))
	return utils.NewEtcdLocker(client, "/campuslink/locks/"), func() { _ = client.Close() }, nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
