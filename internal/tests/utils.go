package tests

import (
	"os"
	"strings"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/logger"
	"go.uber.org/zap"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

// GetTestLogger honors SIDECAR_EVENTS_DEBUG so failing tests can be rerun verbosely.
func GetTestLogger() *zap.Logger {
	debug := strings.EqualFold(os.Getenv(config.ENV_PREFIX+"_DEBUG"), "true")
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: debug})
	if err != nil {
		panic(err)
	}
	return l
}
