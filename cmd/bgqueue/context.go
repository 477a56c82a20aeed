package main

import (
	"context"
	"strings"
	"sync"

	"github.com/soroosh-tanzadeh/bgqueue/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// withApp builds the engine for one command and tears it down afterwards.
func (c *commandContext) withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(a)
}
