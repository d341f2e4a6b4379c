package httpserver

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/internal/enveloperepo"
	"github.com/go-petr/pet-budget/internal/envelopeservice"
	"github.com/go-petr/pet-budget/pkg/cachepkg"
	"github.com/go-petr/pet-budget/pkg/configpkg"
	"github.com/go-petr/pet-budget/pkg/dbpkg"
)

// OpenStore opens the envelope store selected by STORE_BACKEND.
//
// The postgres backend is migrated to the latest schema before use.
func OpenStore(config configpkg.Config) (envelopeservice.Repo, error) {
	switch config.StoreBackend {
	case configpkg.BackendJSON:
		store, err := enveloperepo.NewRepoJSON(config.JSONStorePath)
		if err != nil {
			return nil, err
		}

		return store, nil
	case configpkg.BackendPostgres:
		if err := dbpkg.Migrate(config.DBDriver, config.DBSource); err != nil {
			return nil, err
		}

		db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
		if err != nil {
			return nil, err
		}

		return enveloperepo.NewRepoPGS(db), nil
	}

	return nil, fmt.Errorf("unsupported store backend %q", config.StoreBackend)
}

// OpenCache returns the envelope view cache and the Redis client behind it.
//
// Without REDIS_ADDR caching is disabled and the client is nil.
func OpenCache(ctx context.Context, config configpkg.Config) (envelopeservice.Cache, *goredis.Client, error) {
	if config.RedisAddr == "" {
		return cachepkg.NopCache[domain.Envelope]{}, nil, nil
	}

	client, err := cachepkg.NewClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
	if err != nil {
		return nil, nil, err
	}

	return cachepkg.NewViewCache[domain.Envelope](client, config.CacheTTL), client, nil
}
