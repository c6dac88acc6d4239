package main

import (
	"fmt"
	"os"

	"github.com/diegobr89/immich/internal/clients/redis"
	"github.com/diegobr89/immich/internal/db"
	"github.com/diegobr89/immich/internal/handlers"
	"github.com/diegobr89/immich/internal/jobs"
	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/middleware"
	"github.com/diegobr89/immich/internal/platform/machinelearning"
	"github.com/diegobr89/immich/internal/repos"
	"github.com/diegobr89/immich/internal/search"
	"github.com/diegobr89/immich/internal/server"
	"github.com/diegobr89/immich/internal/services"
	"github.com/diegobr89/immich/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)

	// Machine learning config
	mlConfig, err := machinelearning.ResolveConfigFromEnv()
	if err != nil {
		log.Error("Machine learning config invalid", "error", err)
		os.Exit(1)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(mlConfig.CLIP.Dimension); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	redisClient, err := redis.NewClient(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}
	queueStats := redis.NewQueueStats(log, redisClient)
	albumLocker := redis.NewAlbumLocker(log, redisClient)

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	assetRepo := repos.NewAssetRepo(thePG, log)
	albumRepo := repos.NewAlbumRepo(thePG, log)
	personRepo := repos.NewPersonRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	mlClient, err := machinelearning.NewClient(log, mlConfig)
	if err != nil {
		log.Error("Could not init machine learning client", "error", err)
		os.Exit(1)
	}
	systemConfig, err := services.NewSystemConfigService(log, mlConfig)
	if err != nil {
		log.Error("Could not load system config", "error", err)
		os.Exit(1)
	}
	searchService := search.NewSearchService(thePG, log)
	queueWaiter := jobs.NewQueueWaiter(log, queueStats)
	authService := services.NewAuthService(log, jwtSecretKey, userRepo)
	albumService := services.NewAlbumService(log, albumRepo, assetRepo, personRepo)
	smartAlbumService := services.NewSmartAlbumService(
		log,
		queueWaiter,
		assetRepo,
		albumRepo,
		searchService,
		mlClient,
		systemConfig,
		albumLocker,
	)

	// Handlers
	log.Info("Setting up handlers from main...")
	albumHandler := handlers.NewAlbumHandler(log, albumService)
	jobHandler := handlers.NewJobHandler(log, smartAlbumService, jobRunRepo)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware: authMiddleware,
		AlbumHandler:   albumHandler,
		JobHandler:     jobHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
