package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barterhub/barterhub/barterhub"
	"github.com/barterhub/barterhub/barterhub/database"
	"github.com/barterhub/barterhub/barterhub/database/repositories"
	"github.com/barterhub/barterhub/barterhub/feedback"
	"github.com/barterhub/barterhub/barterhub/logger"
	"github.com/barterhub/barterhub/barterhub/matching"
	"github.com/barterhub/barterhub/barterhub/migration"
	"github.com/barterhub/barterhub/barterhub/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting BarterHub matching engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	runOnce := flag.Bool("run-once", false, "run a single matching pass and exit")
	importLegacy := flag.Bool("import-legacy", false, "import users, listings and trade history from the legacy mongo deployment, then exit")
	retrain := flag.Bool("retrain", false, "commit pending feedback, retrain the model and exit")
	flag.Parse()

	cfg, err := barterhub.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	customHandler.SetLevel(cfg.Log.Level)
	slog.Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to initialize database",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database initialized",
		slog.Duration("took", time.Since(dbStartTime)))

	userRepo := repositories.NewUserRepository(db.BunDB())
	itemRepo := repositories.NewItemRepository(db.BunDB())
	matchRepo := repositories.NewMatchRepository(db.BunDB())
	chainRepo := repositories.NewChainRepository(db.BunDB())
	feedbackRepo := repositories.NewFeedbackRepository(db.BunDB())
	trainingRepo := repositories.NewTrainingRepository(db.BunDB())

	sim, err := services.NewFuzzySimilarity()
	if err != nil {
		slog.Error("Failed to initialize similarity service", slog.Any("error", err))
		os.Exit(-1)
	}

	if *importLegacy {
		importer := migration.NewImporter(db.BunDB(), cfg.Legacy.MongoURI, cfg.Legacy.Database, sim)
		if _, err := importer.Run(ctx); err != nil {
			slog.Error("Legacy import failed", slog.Any("error", err))
			os.Exit(-1)
		}
		return
	}

	blender := matching.NewBlender(&cfg.Engine)
	if err := blender.LoadFrom(cfg.Model.ArtifactPath); err != nil {
		slog.Error("Failed to load model artifact", slog.Any("error", err))
		os.Exit(-1)
	}

	manager := feedback.NewManager(feedbackRepo, trainingRepo, cfg.Feedback.MinRetrainFeedback)
	trainer := feedback.NewTrainer(trainingRepo, cfg.Model.Epochs, cfg.Model.LearningRate)

	if *retrain {
		if _, err := manager.CommitToTraining(ctx); err != nil {
			slog.Error("Failed to commit feedback", slog.Any("error", err))
			os.Exit(-1)
		}
		if err := trainer.TrainAndInstall(ctx, blender, cfg.Model.ArtifactPath); err != nil {
			slog.Error("Retraining failed", slog.Any("error", err))
			os.Exit(-1)
		}
		return
	}

	scorer := matching.NewLexicalScorer(&cfg.Engine, sim)
	generator := matching.NewGenerator(&cfg.Engine, scorer, blender, sim)
	engine := matching.NewEngine(&cfg.Engine, userRepo, itemRepo, matchRepo, chainRepo, generator, services.NewLogNotifier())

	if *runOnce {
		if _, err := engine.Run(ctx); err != nil {
			os.Exit(-1)
		}
		return
	}

	// Long-running mode: drop the startup deadline, run until signaled
	cancel()
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := services.NewScheduler(engine, manager, trainer, blender,
		cfg.Model.ArtifactPath, cfg.Scheduler.RunInterval, cfg.Scheduler.ExpireInterval)
	scheduler.Start(runCtx)
	scheduler.RunOnce(runCtx)

	logger.LogSystem("BarterHub is running, press Ctrl+C to exit")
	<-runCtx.Done()
	logger.LogSystem("Shutting down")
}
