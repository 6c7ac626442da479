// pkg/seed/seed.go
//
// Downloads the seed document an update tool reads on startup and drops it
// next to the executable (required) and into the repository (best effort).

package seed

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/httpclient"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 2 * time.Minute
	// MinBodyBytes rejects empty or truncated responses.
	MinBodyBytes = 10
)

// ErrBodyTooShort is returned when the server answers with less than
// MinBodyBytes.
var ErrBodyTooShort = cerr.New("seed body too short")

// Request names where to fetch the seed from and where to put it.
type Request struct {
	URL     string
	File    string // base name, e.g. data.json
	ExeDir  string
	RepoDir string // optional best-effort copy destination
}

// Downloader fetches seeds over HTTP.
type Downloader struct {
	client *http.Client
	logger *zap.Logger
}

// New returns a downloader. A nil client gets a fresh one with DefaultTimeout.
func New(logger *zap.Logger, client *http.Client) (*Downloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		c, err := httpclient.NewClient(httpclient.Config{
			Timeout:    DefaultTimeout,
			CACertFile: os.Getenv("REGEN_CA_CERT"),
		})
		if err != nil {
			return nil, err
		}
		client = c
	}
	return &Downloader{client: client, logger: logger.Named("seed")}, nil
}

// Download fetches req.URL and writes it to <ExeDir>/<File>, returning that
// path. Failures are transport errors.
func (d *Downloader) Download(ctx context.Context, req Request) (string, error) {
	ctx, span := telemetry.Start(ctx, "seed.Download", attribute.String("url", req.URL))
	defer span.End()
	log := d.logger.With(zap.String("url", req.URL))

	if req.File == "" || req.ExeDir == "" {
		return "", regen_err.NewInternalError("seed request incomplete", cerr.Newf("file=%q exe_dir=%q", req.File, req.ExeDir))
	}

	log.Info("Downloading seed")
	body, err := httpclient.Fetch(ctx, d.client, req.URL)
	if err == nil && len(body) < MinBodyBytes {
		err = cerr.Wrapf(ErrBodyTooShort, "%d bytes", len(body))
	}
	if err != nil {
		span.RecordError(err)
		return "", regen_err.NewTransportError("Failed to download seed data", err,
			"Check network connectivity to "+req.URL,
			"Or clear tool.seed_url to skip the download")
	}

	exeTarget := filepath.Join(req.ExeDir, req.File)
	if err := os.WriteFile(exeTarget, body, xdg.FilePermStandard); err != nil {
		span.RecordError(err)
		return "", regen_err.NewFileIOError("write seed to "+exeTarget, err)
	}
	log.Info("Seed written", zap.String("path", exeTarget), zap.Int("bytes", len(body)))

	if req.RepoDir != "" {
		repoTarget := filepath.Join(req.RepoDir, req.File)
		if err := writeBestEffort(repoTarget, body); err != nil {
			log.Warn("Could not copy seed into repository", zap.String("path", repoTarget), zap.Error(err))
		}
	}
	return exeTarget, nil
}

func writeBestEffort(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), xdg.DirPermStandard); err != nil {
		return err
	}
	return os.WriteFile(path, body, xdg.FilePermStandard)
}
