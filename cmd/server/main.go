package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/worldgate/platform/server/internal/assets"
	"github.com/worldgate/platform/server/internal/config"
	"github.com/worldgate/platform/server/internal/gateway"
	"github.com/worldgate/platform/server/internal/scan"
	"github.com/worldgate/platform/server/internal/session"
	"github.com/worldgate/platform/server/internal/supervisor"
	"github.com/worldgate/platform/server/internal/web"
	"github.com/worldgate/platform/server/internal/worlddb"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rawAddr := env("SERVER_BIND", ":8080")
	addr := sanitizeListenAddr(rawAddr)
	if addr != rawAddr {
		log.Warn().
			Str("raw", rawAddr).
			Str("sanitized", addr).
			Msg("sanitized SERVER_BIND; remove inline comments from address")
	}

	cfg := &config.Config{
		Addr:           addr,
		BasePath:       env("BASE_PATH", ""),
		StorageRoot:    env("STORAGE_ROOT", "data"),
		VolumeName:     env("VOLUME_NAME", "world"),
		ClientDir:      env("CLIENT_DIR", "client/dist"),
		WorldName:      env("WORLD_NAME", "default"),
		CommitHash:     env("COMMIT_HASH", ""),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		MirrorStrict:   boolEnv("MIRROR_STRICT", true),
		MaxUploadBytes: int64Env("MAX_UPLOAD_BYTES", config.DefaultMaxUploadBytes),
	}
	cfg.Public = config.NewPublicSnapshot(os.Environ(), map[string]string{
		"PUBLIC_WORLD_NAME": cfg.WorldName,
		"PUBLIC_BASE_PATH":  cfg.BasePath,
	})

	store, err := assets.NewStore(cfg.AssetDir(), log.With().Str("component", "assets").Logger())
	if err != nil {
		return err
	}

	var replicator *assets.Replicator
	if mirrors := assets.LoadMirrorsFromEnv(ctx, log.Logger); len(mirrors) > 0 {
		log.Info().Int("count", len(mirrors)).Msg("asset mirrors enabled")
		replicator = assets.NewReplicator(mirrors, cfg.MirrorStrict, log.With().Str("component", "mirror").Logger())
	}

	scanner := scan.NewRuleScannerFromEnv()

	pool, err := worlddb.Bootstrap(cfg.DatabasePath(), intEnv("DB_POOL_SIZE", 4), log.Logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	authority := session.NewStubAuthority(log.With().Str("component", "session").Logger())
	gw := gateway.New(authority, ctx, log.With().Str("component", "gateway").Logger())

	server := web.NewServer(cfg, store, replicator, scanner, gw, authority, log.Logger)
	httpServer := &http.Server{Handler: server.Routes()}

	sup := supervisor.New(httpServer, durEnv("SHUTDOWN_GRACE", 5*time.Second), log.Logger)
	if err := sup.Listen(addr); err != nil {
		return err
	}
	return sup.Run(ctx)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

func int64Env(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

func durEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

// sanitizeListenAddr trims whitespace/comments so malformed env values (e.g. ":8080 :: note") do not break net.Listen.
func sanitizeListenAddr(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	fields := strings.Fields(trimmed)
	if len(fields) > 0 {
		trimmed = fields[0]
	}
	trimmed = strings.Trim(trimmed, "\"'")
	return trimmed
}
