// Command justonectl runs operational tasks against the JustOne stores.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if err := newRootCmd(cfg, defaultRuntime).ExecuteContext(context.Background()); err != nil {
		logger.Error(context.Background(), "command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
