package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"live-tick-excel/internal/auth"
	"live-tick-excel/internal/catalog"
	"live-tick-excel/internal/config"
	"live-tick-excel/internal/kite"
	mongoGo "live-tick-excel/internal/mongo"
	"live-tick-excel/internal/stream"
	"live-tick-excel/internal/stream/kafkafeed"
	"live-tick-excel/internal/stream/kiteticker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// kiteSession is a validated broker login.
type kiteSession struct {
	client      *kite.Client
	accessToken string
	closeStore  func()
}

func (s *kiteSession) Close() {
	if s.closeStore != nil {
		s.closeStore()
	}
}

func openTokenStore(ctx context.Context, cfg config.AuthConfig) (auth.Store, func(), error) {
	switch cfg.Store {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		return auth.NewRedisStore(client, cfg.RedisKey), func() { _ = client.Close() }, nil
	default:
		return auth.NewFileStore(cfg.TokenFile), func() {}, nil
	}
}

// openKiteSession validates an access token against the profile endpoint.
// A token from the environment is used as is; otherwise the cached token is
// tried and, when rejected, the user is asked for a new one once.
func openKiteSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*kiteSession, error) {
	sess := &kiteSession{}

	var (
		session  *auth.Session
		prompted bool
	)
	if cfg.Kite.AccessToken != "" {
		sess.accessToken = cfg.Kite.AccessToken
	} else {
		store, closeStore, err := openTokenStore(ctx, cfg.Auth)
		if err != nil {
			return nil, err
		}
		sess.closeStore = closeStore

		session = auth.NewSession(store, auth.LinePrompter{In: os.Stdin, Out: os.Stdout},
			kite.LoginURL(cfg.Kite.APIKey))
		sess.accessToken, prompted, err = session.AccessToken(ctx)
		if err != nil {
			sess.Close()
			return nil, err
		}
	}

	sess.client = kite.NewClient(cfg.Kite.APIBaseURL, cfg.Kite.APIKey, sess.accessToken)
	profile, err := sess.client.Profile(ctx)
	if errors.Is(err, kite.ErrTokenRejected) && session != nil && !prompted {
		logger.Warn("cached access token rejected; asking for a new one")
		if sess.accessToken, err = session.Renew(ctx); err == nil {
			sess.client = kite.NewClient(cfg.Kite.APIBaseURL, cfg.Kite.APIKey, sess.accessToken)
			profile, err = sess.client.Profile(ctx)
		}
	}
	if err != nil {
		sess.Close()
		logger.Error("broker login failed", zap.String("login_url", kite.LoginURL(cfg.Kite.APIKey)))
		return nil, fmt.Errorf("check broker profile: %w", err)
	}

	logger.Info("logged in to broker", zap.String("user", profile.UserName), zap.String("user_id", profile.UserID))
	return sess, nil
}

// openCatalog returns the configured catalog and a func releasing it.
func openCatalog(ctx context.Context, cfg *config.Config, sess *kiteSession, logger *zap.Logger) (catalog.Catalog, func(), error) {
	switch cfg.Catalog.Source {
	case config.SourceMongo:
		client, err := mongoGo.ConnectDB(cfg.MongoDB.URL)
		if err != nil {
			return nil, nil, err
		}
		repo := catalog.NewRepo(mongoGo.GetCollection(client, cfg.MongoDB.DatabaseName, cfg.Catalog.Collection))
		n, err := repo.Count(ctx)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("count catalog: %w", err)
		}
		if n == 0 {
			logger.Warn("mongo catalog is empty; run catalog-sync first",
				zap.String("collection", cfg.Catalog.Collection))
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		logger.Info("fetching instrument master from broker")
		instruments, err := sess.client.Instruments(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch instrument master: %w", err)
		}
		mem := catalog.NewMemory(instruments)
		logger.Info("fetched instrument master", zap.Int("instruments", mem.Len()))
		return mem, func() {}, nil
	}
}

func newTransport(cfg *config.Config, sess *kiteSession, logger *zap.Logger) stream.Transport {
	backoff := stream.Backoff{
		Initial:    cfg.Stream.InitialBackoff,
		Max:        cfg.Stream.MaxBackoff,
		MaxRetries: cfg.Stream.MaxRetries,
	}

	switch cfg.Stream.Source {
	case config.SourceKafka:
		return kafkafeed.New(kafkafeed.Config{Kafka: cfg.Kafka, Backoff: backoff},
			logger.With(zap.String("transport", "kafka")))
	default:
		return kiteticker.New(kiteticker.Config{
			URL:         cfg.Kite.TickerURL,
			APIKey:      cfg.Kite.APIKey,
			AccessToken: sess.accessToken,
			ReadTimeout: cfg.Stream.ReadTimeout,
			Backoff:     backoff,
		}, logger.With(zap.String("transport", "kite")))
	}
}
