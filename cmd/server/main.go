package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"jammr/backend/docs"
	"jammr/backend/internal/auth"
	"jammr/backend/internal/config"
	"jammr/backend/internal/database"
	"jammr/backend/internal/geocoding"
	"jammr/backend/internal/handler"
	"jammr/backend/internal/hub"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/observability"
	"jammr/backend/internal/service"
	"jammr/backend/internal/storage"
	"jammr/backend/internal/vocab"
	"jammr/backend/pkg/jwt"
)

const shutdownTimeout = 15 * time.Second

// @title           Jammr API
// @version         1.0
// @description     Location based matching for musicians.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: "jammr-backend",
		Environment: cfg.AppEnv,
		Version:     docs.SwaggerInfo.Version,
		Endpoint:    cfg.OtelEndpoint,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}

	rdb, err := openRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Chat fan-out is local unless redis is configured.
	chatHub := hub.NewHub()
	var notifier service.ChangeNotifier = chatHub
	geoCache := geocoding.NewMemoryCache()
	revocations := auth.NewMemoryRevocations()
	if rdb != nil {
		bus, err := hub.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			return err
		}
		if err := bus.StartForwarder(ctx, chatHub); err != nil {
			return err
		}
		notifier = bus
		geoCache = geocoding.NewRedisCache(rdb)
		revocations = auth.NewRedisRevocations(rdb)
	}

	blobs, err := openBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	localMedia, _ := blobs.(*storage.MemoryStore)

	places := geocoding.NewClient(log, geocoding.Options{
		PlacesBaseURL:     cfg.PlacesBaseURL,
		PlacesAPIKey:      cfg.PlacesAPIKey,
		ReverseGeocodeURL: cfg.ReverseGeocodeURL,
		ForwardGeocodeURL: cfg.ForwardGeocodeURL,
		Timeout:           cfg.GeocodeTimeout(),
		Debounce:          cfg.SuggestDebounce(),
		Cache:             geoCache,
	})

	var verifier service.IDTokenVerifier
	if cfg.GoogleClientID != "" {
		v, err := idtoken.NewValidator(ctx)
		if err != nil {
			return fmt.Errorf("id token validator: %w", err)
		}
		verifier = v
	} else {
		log.Warn("GOOGLE_CLIENT_ID not set, federated sign-in disabled")
	}

	words := vocab.Default()
	if err := handler.RegisterValidations(words); err != nil {
		return fmt.Errorf("register validations: %w", err)
	}

	tokens := jwt.NewIssuer(cfg.JWTSecret, cfg.JWTTTL())
	sessions := auth.NewManager(tokens, revocations, log)

	// Services
	profileSvc := service.NewProfileService(db, log, words, blobs)
	chatSvc := service.NewChatService(db, log, chatHub, notifier, profileSvc)
	requestSvc := service.NewRequestService(db, log, profileSvc, chatSvc)
	discoverySvc := service.NewDiscoveryService(db, log, words, requestSvc, cfg.DiscoveryDefaultRadius)
	identitySvc := service.NewIdentityService(db, log, tokens, verifier, cfg.GoogleClientID)

	// Handlers
	handlers := handler.Handlers{
		Auth:       handler.NewAuthHandler(log, identitySvc, sessions),
		Profiles:   handler.NewProfileHandler(log, profileSvc, requestSvc, cfg.MediaMaxBytes()),
		Discovery:  handler.NewDiscoveryHandler(log, discoverySvc),
		Requests:   handler.NewRequestHandler(log, requestSvc),
		Chats:      handler.NewChatHandler(log, chatSvc, requestSvc),
		Locations:  handler.NewLocationHandler(log, places),
		Vocabulary: handler.NewVocabularyHandler(words),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(otelgin.Middleware("jammr-backend"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// URLs from the in-memory store point here
	if localMedia != nil {
		router.GET("/media/*key", handler.NewMediaHandler(log, localMedia).Serve)
	}

	handler.RegisterRoutes(router.Group("/api/v1"), handlers, sessions, profileSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server is running", "addr", srv.Addr)
		log.Info("Swagger UI is available", "url", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openDatabase connects to postgres, or to a throwaway sqlite database when
// no DATABASE_URL is configured outside production.
func openDatabase(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	if cfg.DatabaseURL != "" {
		return database.Connect(cfg.DatabaseURL, log)
	}
	log.Warn("DATABASE_URL not set, using in-memory sqlite")
	return database.OpenInMemory("jammr")
}

func openRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*goredis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-process chat fan-out")
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis connected", "addr", cfg.RedisAddr)
	return rdb, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.BlobStore, error) {
	if cfg.MediaBucket == "" {
		log.Warn("MEDIA_BUCKET not set, media is kept in memory")
		return storage.NewMemoryStore(fmt.Sprintf("http://localhost:%s/media", cfg.Port)), nil
	}
	return storage.NewGCSStore(ctx, log, storage.GCSConfig{
		Bucket:       cfg.MediaBucket,
		CDNDomain:    cfg.MediaCDNDomain,
		EmulatorHost: cfg.StorageEmulatorHost,
	})
}
