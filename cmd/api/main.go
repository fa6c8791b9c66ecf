package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/config"
	"github.com/noah-isme/homework-grader/internal/database"
	"github.com/noah-isme/homework-grader/internal/handler"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/repository"
	"github.com/noah-isme/homework-grader/internal/router"
	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/storage"
	"github.com/noah-isme/homework-grader/pkg/ai"
	cloud "github.com/noah-isme/homework-grader/pkg/cloudinary"
)

// bodySlack leaves room for multipart framing and the doc_type field on top of the file limit.
const bodySlack = 1024 * 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStartup()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.DefaultPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(startupCtx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled, analytics are not cached")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	store, err := storage.NewLocal(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	var archiver service.DocumentArchiver
	if cfg.CloudinaryEnabled() {
		cld, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		archiver = cld
	}

	grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create grading client")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	classRepo := repository.NewClassRepository(db)

	authService := service.NewAuthService(studentRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(submissionRepo, redisClient, cfg.AnalyticsCacheTTL, logger)
	events := service.NewGradeEventPublisher(redisClient, cfg.GradeEventChannel, natsConn, cfg.GradeEventSubject, logger)
	submissionService := service.NewSubmissionService(service.SubmissionServiceConfig{
		Submissions: submissionRepo,
		Store:       store,
		Archiver:    archiver,
		Grader:      grader,
		Events:      events,
		Stats:       analyticsService,
		Validator:   validate,
		MaxBytes:    cfg.UploadMaxBytes(),
		Logger:      logger,
	})
	chatService := service.NewChatService(grader, validate, logger)
	classService := service.NewClassService(classRepo, logger)

	sessions := middleware.NewSessionStore(cfg.SessionTTL, cfg.IsProduction())
	tokens := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTokenTTL)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes()) + bodySlack,
		ErrorHandler: router.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    true,
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, sessions, tokens, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, logger),
		ChatHandler:       handler.NewChatHandler(chatService, logger),
		ClassHandler:      handler.NewClassHandler(classService, logger),
		Sessions:          sessions,
		Tokens:            tokens,
		UploadLimit:       middleware.RateLimit("upload", cfg.RateLimitMax, cfg.RateLimitWindow),
		ChatLimit:         middleware.RateLimit("chat", cfg.RateLimitMax, cfg.RateLimitWindow),
		HealthProbes:      healthProbes(db, redisClient),
		Metrics:           true,
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	if cfg.UploadRetention > 0 {
		go runRetention(janitorCtx, store, cfg.UploadRetention, logger)
	}

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}
