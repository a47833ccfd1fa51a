// internal/launcher/logging.go
package launcher

import (
	"io"

	"github.com/rovshanmuradov/dlmm-launcher/internal/config"
	"github.com/rovshanmuradov/dlmm-launcher/internal/logger"
)

// NewLogger builds the application logger from the log section. console
// overrides stdout when non-nil.
func NewLogger(cfg *config.Config, console io.Writer) (*logger.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.LogFile = cfg.Log.File
	lc.Development = cfg.Log.Development
	if cfg.Log.MaxSize > 0 {
		lc.MaxSize = cfg.Log.MaxSize
	}
	if cfg.Log.MaxAge > 0 {
		lc.MaxAge = cfg.Log.MaxAge
	}
	if cfg.Log.MaxBackups > 0 {
		lc.MaxBackups = cfg.Log.MaxBackups
	}
	lc.Compress = cfg.Log.Compress
	lc.Console = console
	return logger.New(lc)
}
