package config

import (
	"os"

	"github.com/wpmend-dev/wpmend-agent/internal/envconf"
	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/internal/repository"
	"github.com/wpmend-dev/wpmend-agent/pkg/orchestrator"
)

type Config struct {
	// Logger for logging
	Logger *logger.Logger

	Repository *repository.Repository

	Orchestrator *orchestrator.Orchestrator

	DefaultMaxFixAttempts int
}

func GetConfig(envConf *envconf.EnvDecoderConf, repo *repository.Repository, orch *orchestrator.Orchestrator) (*Config, error) {
	res := &Config{
		Logger:                logger.New(envConf.Debug, os.Stdout),
		Repository:            repo,
		Orchestrator:          orch,
		DefaultMaxFixAttempts: int(envConf.RemediationConf.DefaultMaxFixAttempts),
	}

	return res, nil
}
