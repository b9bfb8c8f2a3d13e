package bootstrap

import (
	"go.uber.org/zap"
)

// NewLogger builds the production logger at the given level; an unknown level means info.
func NewLogger(level string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}
