package uploadrouter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
)

// localSink writes images to a configured directory laid out by date,
// served back to callers under the configured public file-server base URL.
type localSink struct {
	dir       string
	publicURL string
}

func newLocalSink(cfg config.HostingConfig) *localSink {
	return &localSink{dir: cfg.LocalDir, publicURL: strings.TrimRight(cfg.PublicBaseURL, "/")}
}

func (s *localSink) upload(image []byte, ext string) (Outcome, error) {
	now := time.Now().UTC()
	relDir := filepath.Join(fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), fmt.Sprintf("%02d", now.Day()))
	absDir := filepath.Join(s.dir, relDir)

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "create local sink directory", err)
	}

	filename := uuid.NewString() + "." + ext
	fullPath := filepath.Join(absDir, filename)
	if err := os.WriteFile(fullPath, image, 0o644); err != nil {
		return Outcome{}, apperr.Internal("uploadrouter", "write local image file", err)
	}

	url := s.publicURL + "/images/" + filepath.ToSlash(relDir) + "/" + filename
	return Outcome{URL: url, Sink: SinkLocal}, nil
}
