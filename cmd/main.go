package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/inkbridge-backend/internal/clients/gcp"
	"github.com/yungbote/inkbridge-backend/internal/clients/redis"
	"github.com/yungbote/inkbridge-backend/internal/db"
	"github.com/yungbote/inkbridge-backend/internal/logger"
	"github.com/yungbote/inkbridge-backend/internal/modules/transcript"
	"github.com/yungbote/inkbridge-backend/internal/repos"
	"github.com/yungbote/inkbridge-backend/internal/services"
	"github.com/yungbote/inkbridge-backend/internal/utils"
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
	dbDriver := utils.GetEnv("DB_DRIVER", "postgres", log)
	syncInterval := utils.GetEnvAsInt("SYNC_INTERVAL_SECONDS", 15, log)

	// Database
	var gormDB *gorm.DB
	switch dbDriver {
	case "sqlite":
		sqliteService, err := db.NewSQLiteService(log)
		if err != nil {
			log.Fatal("SQLite init failed", "error", err)
		}
		if err := sqliteService.AutoMigrateAll(); err != nil {
			log.Fatal("SQLite auto migration failed", "error", err)
		}
		gormDB = sqliteService.DB()
	default:
		postgresService, err := db.NewPostgresService(log)
		if err != nil {
			log.Fatal("Postgres init failed", "error", err)
		}
		if err := postgresService.AutoMigrateAll(); err != nil {
			log.Fatal("Postgres auto migration failed", "error", err)
		}
		gormDB = postgresService.DB()
	}

	// Tuning
	tuning := transcript.LoadTuning(log)

	// Repos
	log.Info("Setting up Repos from main...")
	blockRepo := repos.NewBlockRepo(gormDB, log)
	inkRecordRepo := repos.NewInkRecordRepo(gormDB, log)
	pageSyncRepo := repos.NewPageSyncRepo(gormDB, log)

	// Clients
	log.Info("Setting up Clients from main...")
	visionClient, err := gcp.NewVision(log)
	if err != nil {
		log.Fatal("Vision client init failed", "error", err)
	}
	defer visionClient.Close()

	var lease transcript.Lease
	pageLease, err := redis.NewPageLease(log)
	if err != nil {
		log.Warn("Redis lease unavailable, running single-worker", "error", err)
		lease = transcript.NewNoopLease()
	} else {
		defer pageLease.Close()
		lease = pageLease
	}

	// Services
	log.Info("Setting up Services from main...")
	renderer := services.NewInkRenderer(log, tuning.RenderScale)
	recognizer, err := services.NewVisionRecognizer(log, visionClient, renderer, tuning.IndentUnit)
	if err != nil {
		log.Fatal("Recognizer init failed", "error", err)
	}
	blockStore, err := services.NewGormBlockStore(gormDB, log, blockRepo)
	if err != nil {
		log.Fatal("Block store init failed", "error", err)
	}

	// Usecases
	usecases := transcript.New(transcript.UsecasesDeps{
		DB:         gormDB,
		Log:        log,
		Store:      blockStore,
		Recognizer: recognizer,
		Ink:        inkRecordRepo,
		Pages:      pageSyncRepo,
		Tuning:     tuning,
	})

	// Runner
	runner, err := transcript.NewRunner(transcript.RunnerDeps{
		Log:         log,
		Pages:       pageSyncRepo,
		Lease:       lease,
		Usecases:    usecases,
		Concurrency: tuning.PageConcurrency,
		LeaseTTL:    time.Duration(tuning.LeaseTTLSeconds) * time.Second,
	})
	if err != nil {
		log.Fatal("Runner init failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx, time.Duration(syncInterval)*time.Second); err != nil && err != context.Canceled {
		log.Error("Runner exited", "error", err)
	}
}
