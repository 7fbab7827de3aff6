package assets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Mirror replicates stored assets to an external target (object
// store, remote host). The local content-addressed store stays the
// source of truth; mirrors run after the local write succeeds.
type Mirror interface {
	Name() string
	StoreAsset(ctx context.Context, filename string, data []byte) error
}

// LoadMirrorsFromEnv instantiates the mirrors declared in the
// ASSET_MIRRORS env variable (comma-separated: s3, azure, sftp, ftps).
func LoadMirrorsFromEnv(ctx context.Context, logger zerolog.Logger) []Mirror {
	raw := os.Getenv("ASSET_MIRRORS")
	if raw == "" {
		return nil
	}
	var instances []Mirror
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}
		var (
			mirror Mirror
			err    error
		)
		switch token {
		case "s3":
			mirror, err = NewS3Mirror(ctx)
		case "azure":
			mirror, err = NewAzureBlobMirror(ctx)
		case "sftp":
			mirror, err = NewSFTPMirror()
		case "ftps":
			mirror, err = NewFTPSMirror()
		default:
			err = fmt.Errorf("unknown mirror %q", token)
		}
		if err != nil {
			logger.Error().Err(err).Str("mirror", token).Msg("failed to init asset mirror")
			continue
		}
		logger.Info().Str("mirror", mirror.Name()).Msg("initialized asset mirror")
		instances = append(instances, mirror)
	}
	return instances
}

// Replicator fans a stored asset out to a set of mirrors. With strict
// mode on, the first mirror failure is returned to the caller;
// otherwise failures are logged and the remaining mirrors still run.
type Replicator struct {
	mirrors []Mirror
	strict  bool
	logger  zerolog.Logger
}

func NewReplicator(mirrors []Mirror, strict bool, logger zerolog.Logger) *Replicator {
	return &Replicator{mirrors: mirrors, strict: strict, logger: logger}
}

func (r *Replicator) Replicate(ctx context.Context, filename string, data []byte) error {
	for _, mirror := range r.mirrors {
		if err := mirror.StoreAsset(ctx, filename, data); err != nil {
			r.logger.Error().
				Err(err).
				Str("mirror", mirror.Name()).
				Str("asset", filename).
				Msg("mirror failed to store asset")
			if r.strict {
				return fmt.Errorf("mirror %s: %w", mirror.Name(), err)
			}
		}
	}
	return nil
}
