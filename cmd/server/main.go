package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"studybuddy-backend/internal/assistant"
	"studybuddy-backend/internal/config"
	"studybuddy-backend/internal/database"
	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/router"
	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/websocket"
	"studybuddy-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}
	defer log.Sync()
	log.Info("starting studybuddy backend", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL, cfg.WorkerCount)
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClients.Close()

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	courseRepo := repository.NewCourseRepo(pool)
	materialRepo := repository.NewMaterialRepo(pool)
	planRepo := repository.NewStudyPlanRepo(pool)
	sessionRepo := repository.NewStudySessionRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	studyLogRepo := repository.NewStudyLogRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Queue, log)
	locker := services.NewRedisLocker(redisClients.Queue)

	courseService := services.NewCourseService(courseRepo, materialRepo, log)
	planService := services.NewPlanService(courseRepo, materialRepo, planRepo, sessionRepo, locker, publisher, cfg.PlanLockTTL, log)
	contentService := services.NewContentUpdateService(courseRepo, materialRepo, planRepo, sessionRepo, locker, publisher, cfg.PlanLockTTL, log)
	sessionService := services.NewSessionService(planRepo, sessionRepo, publisher, log)
	progressService := services.NewProgressService(courseRepo, planRepo, sessionRepo, studyLogRepo, log)
	authService := services.NewAuthService(userRepo, services.NewRedisTokenStore(redisClients.Queue), jwtAuth, log)
	emailService := services.NewEmailService(services.EmailConfig{
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SMTPUser:       cfg.SMTPUser,
		SMTPPass:       cfg.SMTPPass,
		From:           cfg.SMTPFrom,
		SendgridAPIKey: cfg.SendgridAPIKey,
		FrontendURL:    cfg.FrontendURL,
	}, log)
	fileExtractService := services.NewFileExtractService()

	// ──── Initialize Handlers ────
	enqueue := func(ctx context.Context, job *models.Job) error {
		return worker.Enqueue(ctx, redisClients.Queue, job)
	}
	h := router.Handlers{
		Auth:     handlers.NewAuthHandler(authService),
		Courses:  handlers.NewCourseHandler(courseService, contentService, jobRepo, enqueue, cfg.StoragePath, log),
		Plans:    handlers.NewStudyPlanHandler(planService, contentService, progressService),
		Sessions: handlers.NewStudySessionHandler(sessionService),
		Jobs:     handlers.NewJobHandler(jobRepo),
		Assistant: handlers.NewAssistantHandler(assistant.Services{
			Courses:  courseService,
			Plans:    planService,
			Content:  contentService,
			Sessions: sessionService,
			Progress: progressService,
		}, log),
	}

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, log)

	// ──── Step 6: Start HTTP Server ────
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.New(jwtAuth, h, wsHub, cfg.FrontendURL),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	reminders := services.NewReminderScheduler(sessionRepo, userRepo, courseRepo, emailService, publisher, cfg.ReminderLead, log)
	reminders.Start()
	defer reminders.Stop()

	workerPool := worker.NewPool(
		redisClients.Queue,
		courseService,
		contentService,
		fileExtractService,
		jobRepo,
		publisher,
		cfg.StoragePath,
		cfg.WorkerCount,
		log,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workerPool.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http server listening", "port", cfg.Port, "api", "/api/v1", "ws", "/api/v1/ws")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
	}
}
