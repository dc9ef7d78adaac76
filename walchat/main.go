package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walchat/walchat/config"
	"walchat/walchat/controllers"
	"walchat/walchat/routes"
	"walchat/walchat/services/llm"
	"walchat/walchat/sources/memstore"
	"walchat/walchat/sources/psql"
	"walchat/walchat/sources/psql/dao"
	"walchat/walchat/sources/storage"
	"walchat/walchat/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()
	cfg := config.LoadConfig()

	generator := llm.NewClient(cfg)

	var archivers controllers.ArchiverFactory
	switch cfg.ArchiveBackend {
	case "minio":
		archive, err := storage.NewArchive(cfg)
		if err != nil {
			logging.ErrorLogger.Error("minio connection error", zap.Error(err))
			os.Exit(1)
		}
		archivers = archive.ForAddress
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := psql.NewDatabase(ctx, cfg)
		cancel()
		if err != nil {
			logging.ErrorLogger.Error("database connection error", zap.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		archivers = dao.NewArchiveDAO(db.DB).ForAddress
	default:
		logArchive := storage.NewLogArchive()
		archivers = func(string) memstore.Archiver { return logArchive }
	}

	hub := controllers.NewHub(generator, archivers)
	authCtrl := controllers.NewAuthController(cfg)
	healthCtrl := controllers.NewHealthController()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/auth", routes.AuthRoutes(authCtrl))
	r.Mount("/chat", routes.ChatRoutes(hub, cfg))
	r.Mount("/health", routes.HealthRoutes(healthCtrl))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
	go func() {
		logging.AppLogger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
