package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/progress"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/storage"
	"github.com/goliatone/go-formflow/schemas"
)

// formFlags select a form and where its progress lives.
type formFlags struct {
	form        string
	operationID string
	httpTimeout time.Duration

	stateDir    string
	redisAddr   string
	redisPrefix string
	redisTTL    time.Duration
}

func (f *formFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.form, "form", envOr("FORM", ""), "built-in form name, or path/URL of a YAML, JSON or OpenAPI document")
	flags.StringVar(&f.operationID, "operation", envOr("OPERATION", ""), "OpenAPI operation id to build the form from")
	flags.DurationVar(&f.httpTimeout, "http-timeout", envDuration("HTTP_TIMEOUT", schema.DefaultRequestTimeout), "timeout for fetching forms over HTTP")
	flags.StringVar(&f.stateDir, "state-dir", envOr("STATE_DIR", ""), "directory for saved progress (default: user config dir)")
	flags.StringVar(&f.redisAddr, "redis-addr", envOr("REDIS_ADDR", ""), "store progress in Redis at host:port instead of files")
	flags.StringVar(&f.redisPrefix, "redis-prefix", envOr("REDIS_PREFIX", "formflow:"), "key prefix in Redis")
	flags.DurationVar(&f.redisTTL, "redis-ttl", envDuration("REDIS_TTL", 30*24*time.Hour), "expire saved progress in Redis after this long (0 keeps it)")
}

// resolveForm loads the form named by ref: a built-in catalog entry or a
// document path or URL.
func resolveForm(ctx context.Context, ref, operationID string, httpTimeout time.Duration) (model.FormSchema, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.FormSchema{}, fmt.Errorf("--form is required (built in: %s)", strings.Join(schemas.Names(), ", "))
	}
	if schemas.Has(ref) {
		return schemas.Load(ref)
	}
	src, err := schema.ParseSource(ref)
	if err != nil {
		return model.FormSchema{}, err
	}
	loader := schema.NewLoader(schema.WithHTTP(httpTimeout), schema.WithOperationID(operationID))
	return loader.LoadSchema(ctx, src)
}

// openBackend returns the progress storage selected by flags and a func that
// releases it.
func openBackend(ctx context.Context, f *formFlags, logger *zap.Logger) (progress.Storage, func() error, error) {
	if addr := strings.TrimSpace(f.redisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", addr, err)
		}
		logger.Debug("formflow: progress stored in redis", zap.String("addr", addr))
		backend := storage.NewRedis(client, storage.WithKeyPrefix(f.redisPrefix), storage.WithTTL(f.redisTTL))
		return backend, client.Close, nil
	}

	dir, err := stateDir(f.stateDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("formflow: progress stored on disk", zap.String("dir", dir))
	return storage.NewFile(afero.NewOsFs(), dir), func() error { return nil }, nil
}

func stateDir(flag string) (string, error) {
	if strings.TrimSpace(flag) != "" {
		return flag, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.New("no --state-dir given and no user config directory available")
	}
	return filepath.Join(base, "formflow"), nil
}
