package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/schoolbot/internal/bot"
	"github.com/noah-isme/schoolbot/internal/chat"
	"github.com/noah-isme/schoolbot/internal/handler"
	"github.com/noah-isme/schoolbot/internal/notify"
	"github.com/noah-isme/schoolbot/internal/repository"
	"github.com/noah-isme/schoolbot/internal/scraper"
	"github.com/noah-isme/schoolbot/internal/service"
	"github.com/noah-isme/schoolbot/internal/session"
	"github.com/noah-isme/schoolbot/pkg/cache"
	"github.com/noah-isme/schoolbot/pkg/config"
	"github.com/noah-isme/schoolbot/pkg/database"
	"github.com/noah-isme/schoolbot/pkg/logger"
	reqidmiddleware "github.com/noah-isme/schoolbot/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logr.Sugar().Fatalw("schema setup failed", "error", err)
	}
	if cfg.Bot.DirectorUsername != "" {
		if err := repository.SeedDirector(ctx, db, cfg.Bot.DirectorUsername); err != nil {
			logr.Sugar().Fatalw("director seed failed", "error", err)
		}
	}

	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	var sessions session.Store = session.NewMemoryStore()
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		if cfg.Sessions.Backend == "redis" {
			logr.Sugar().Fatalw("redis connection failed", "error", err)
		}
		logr.Sugar().Warnw("redis unavailable, role caching disabled", "error", err)
		redisClient = nil
	}
	if cfg.Sessions.Backend == "redis" {
		sessions = session.NewRedisStore(redisClient, cfg.Sessions.TTL)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	transport := chat.NewHTTPTransport(cfg.Bot.APIBaseURL, cfg.Bot.Token, cfg.Bot.RequestTimeout)

	dispatcher := notify.NewDispatcher(transport, assignmentRepo, metrics, cfg.Notifications, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	roles := service.NewRoleService(cfg.Bot.DirectorUsername, teacherRepo, studentRepo, redisClient, metrics)
	roster := service.NewRosterService(teacherRepo, studentRepo, classRepo, roles)
	assignments := service.NewAssignmentService(assignmentRepo, studentRepo, teacherRepo, classRepo, dispatcher, metrics)
	invites := service.NewInviteService(cfg.Invites.Secret, cfg.Bot.Username, cfg.Invites.TTL)
	exports := service.NewExportService(assignmentRepo, cfg.Exports.Enabled, metrics)
	school := scraper.New(cfg.School)

	router := bot.NewRouter(bot.Deps{
		Roles:       roles,
		Sessions:    sessions,
		Assignments: assignments,
		Roster:      roster,
		Invites:     invites,
		Exports:     exports,
		School:      school,
		Transport:   transport,
		Teachers:    teacherRepo,
		Students:    studentRepo,
		Metrics:     metrics,
		Logger:      logr,
		MaxFileSize: cfg.Bot.MaxFileSizeBytes,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))

	updates := handler.NewUpdateHandler(router)
	health := handler.NewHealthHandler(db, redisClient)

	r.POST(cfg.Bot.WebhookPath, updates.Handle)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
