package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-tick-excel/internal/auth"
	"live-tick-excel/internal/catalog"
	"live-tick-excel/internal/config"
	"live-tick-excel/internal/kite"
	"live-tick-excel/internal/logger"
	mongoGo "live-tick-excel/internal/mongo"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	_configFilePath = "config/config.yml"
	_syncTimeout    = 2 * time.Minute
)

// catalog-sync downloads the broker's instrument master into MongoDB so
// the exporter can resolve its watch-list without the broker.
func main() {
	cfgPath := flag.String("config", _configFilePath, "path to the configuration file")
	flag.Parse()

	// - Load Configuration
	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if cfg.MongoDB.URL == "" {
		log.Fatalf("MONGO_URL is not set")
	}
	if cfg.Kite.APIKey == "" {
		log.Fatalf("KITE_API_KEY is not set")
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// - Access token
	accessToken := cfg.Kite.AccessToken
	if accessToken == "" {
		accessToken, err = cachedAccessToken(ctx, cfg)
		if err != nil {
			zapLogger.Fatal("can't get access token", zap.Error(err))
		}
	}

	// - Download
	ctxSync, cancelSync := context.WithTimeout(ctx, _syncTimeout)
	defer cancelSync()

	instruments, err := kite.NewClient(cfg.Kite.APIBaseURL, cfg.Kite.APIKey, accessToken).Instruments(ctxSync)
	if err != nil {
		zapLogger.Fatal("can't fetch instrument master", zap.Error(err))
	}
	zapLogger.Info("fetched instrument master", zap.Int("instruments", len(instruments)))

	// - Connect to MongoDB
	client, err := mongoGo.ConnectDB(cfg.MongoDB.URL)
	if err != nil {
		zapLogger.Fatal("can't connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zapLogger.Error("can't disconnect from MongoDB", zap.Error(err))
		}
	}()

	repo := catalog.NewRepo(mongoGo.GetCollection(client, cfg.MongoDB.DatabaseName, cfg.Catalog.Collection))
	if err := repo.EnsureIndexes(ctxSync); err != nil {
		zapLogger.Fatal("can't create catalog indexes", zap.Error(err))
	}

	n, err := repo.ReplaceAll(ctxSync, instruments)
	if err != nil {
		zapLogger.Fatal("can't store instrument master", zap.Error(err))
	}
	zapLogger.Info("catalog synced",
		zap.Int("inserted", n),
		zap.String("database", cfg.MongoDB.DatabaseName),
		zap.String("collection", cfg.Catalog.Collection))
}

func cachedAccessToken(ctx context.Context, cfg *config.Config) (string, error) {
	var store auth.Store
	switch cfg.Auth.Store {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Auth.RedisAddr, Password: cfg.Auth.RedisPassword})
		defer client.Close()
		store = auth.NewRedisStore(client, cfg.Auth.RedisKey)
	default:
		store = auth.NewFileStore(cfg.Auth.TokenFile)
	}

	session := auth.NewSession(store, auth.LinePrompter{In: os.Stdin, Out: os.Stdout},
		kite.LoginURL(cfg.Kite.APIKey))
	token, _, err := session.AccessToken(ctx)
	return token, err
}
