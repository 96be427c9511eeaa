// Package archlog provides the runtime's single zap configuration
// point, giving every other package the structured logger that
// dry-run, signal, and thread-group diagnostics write through.
package archlog

import "go.uber.org/zap"

// New builds a *zap.SugaredLogger. development selects zap's
// human-readable console encoder and debug level; production selects
// JSON output at info level, matching zap.NewDevelopment/NewProduction.
func New(development bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests and
// callers that have not configured logging.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
