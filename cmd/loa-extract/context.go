package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/MorganRO8/LoA-sub000/internal/common"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	logOutput    io.Writer

	configOnce sync.Once
	config     *common.Config
	configErr  error
	logger     *slog.Logger
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		logOutput:    os.Stderr,
	}
}

func (c *commandContext) ensureConfig() (*common.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := common.LoadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		c.config = cfg
		c.logger = slog.New(slog.NewJSONHandler(c.logOutput, &slog.HandlerOptions{Level: cfg.LogLevel()}))
		slog.SetDefault(c.logger)
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
