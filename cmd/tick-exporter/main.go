package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"live-tick-excel/internal/api/handler"
	"live-tick-excel/internal/api/usecase"
	"live-tick-excel/internal/catalog"
	"live-tick-excel/internal/config"
	"live-tick-excel/internal/export"
	"live-tick-excel/internal/ingest"
	"live-tick-excel/internal/logger"
	"live-tick-excel/internal/registry"
	"live-tick-excel/internal/server"
	"live-tick-excel/internal/stream"
	"live-tick-excel/internal/watchlist"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	_configFilePath  = "config/config.yml"
	_shutdownTimeout = 5 * time.Second
)

func main() {
	cfgPath := flag.String("config", _configFilePath, "path to the configuration file")
	flag.Parse()

	// - Load Configuration
	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// - Read the watch-list
	names, err := watchlist.Read(cfg.Watchlist.Path, cfg.Watchlist.Sheet)
	if err != nil {
		zapLogger.Fatal("can't load watch-list", zap.String("path", cfg.Watchlist.Path), zap.Error(err))
	}
	if ok, _ := watchlist.HeaderMatches(cfg.Watchlist.Path, cfg.Watchlist.Sheet); !ok {
		zapLogger.Warn("watch-list header mismatch; proceeding anyway",
			zap.String("expected", watchlist.Header))
	}
	zapLogger.Info("read watch-list", zap.Int("entries", len(names)))

	// - Broker session, when the broker is a stream or catalog source
	var sess *kiteSession
	if cfg.Stream.Source == config.SourceKite || cfg.Catalog.Source == config.SourceKite {
		sess, err = openKiteSession(ctx, cfg, zapLogger)
		if err != nil {
			zapLogger.Fatal("can't open broker session", zap.Error(err))
		}
	}

	// - Resolve names to tokens
	cat, closeCatalog, err := openCatalog(ctx, cfg, sess, zapLogger)
	if err != nil {
		zapLogger.Fatal("can't open instrument catalog", zap.Error(err))
	}
	instruments, err := catalog.NewResolver(cat, zapLogger).Resolve(ctx, names)
	closeCatalog()
	if err != nil {
		zapLogger.Fatal("can't resolve watch-list", zap.Error(err))
	}

	// - Registry and sink
	var opts []registry.Option
	if cfg.Registry.MergePartialTicks {
		opts = append(opts, registry.WithPolicy(registry.PolicyMerge))
	}
	reg := registry.New(opts...)
	for _, inst := range instruments {
		if err := reg.Register(inst.Token, inst.Name); err != nil {
			zapLogger.Fatal("can't register instrument", zap.Error(err))
		}
	}
	zapLogger.Info("ready to subscribe", zap.Int("instruments", reg.Len()))

	sink, err := ingest.NewSink(reg, zapLogger, cfg.Registry.MaxTicksPerInstrument)
	if err != nil {
		zapLogger.Fatal("can't create tick sink", zap.Error(err))
	}

	// - Start the stream
	ctrl := stream.NewController(reg, sink, newTransport(cfg, sess, zapLogger),
		stream.Mode(cfg.Kite.Mode), zapLogger)
	if err := ctrl.Start(ctx); err != nil {
		zapLogger.Fatal("can't start tick stream", zap.Error(err))
	}

	// - Serve exports
	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("can't load export timezone", zap.Error(err))
	}
	uc := usecase.NewUsecase(export.NewReader(reg, loc), ctrl, sink, reg.Len())
	h := handler.NewHandler(uc, cfg.Export.SheetName)

	if cfg.Log.Level != "dev" && cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewHTTPServer(cfg.Server.Addr(),
		h.InitRoutes(cfg.Server.RequestTimeout, zapLogger), cfg.Server.RequestTimeout)

	go func() {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("can't start server", zap.Error(err))
		}
	}()
	zapLogger.Info("serving live prices",
		zap.String("csv", "http://"+srv.Addr()+"/live_prices.csv"),
		zap.String("xlsx", "http://"+srv.Addr()+"/live_prices.xlsx"))

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), _shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("can't shutdown server", zap.Error(err))
	}

	select {
	case <-ctrl.Done():
	case <-shutdownCtx.Done():
		zapLogger.Warn("tick stream did not stop in time")
	}
	if sess != nil {
		sess.Close()
	}
}
