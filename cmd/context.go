package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"retailworks/internal/config"
	"retailworks/internal/repo"
	"retailworks/internal/snowflake"
	"retailworks/pkg/errors"
	"retailworks/pkg/models"
)

// loadConfig reads the toolkit configuration and fails when none exists,
// since every command needs at least connection settings.
func loadConfig() (*models.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Snowflake.Account == "" {
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			"No Snowflake account configured").
			WithSuggestions("Run 'retailworks setup' to create a configuration")
	}
	return cfg, nil
}

// resolveEnvironment picks the target environment from the global flag.
func resolveEnvironment(cfg *models.Config) (models.Environment, error) {
	name := viper.GetString("environment")
	env, ok := cfg.EnvironmentByName(name)
	if !ok {
		return models.Environment{}, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("Environment '%s' not found in configuration", name)).
			WithSuggestions("Define the environment under 'environments:' in your config")
	}
	return env, nil
}

// connectSnowflake builds and connects the Snowflake service for an
// environment, resolving the password through the credential chain.
func connectSnowflake(cfg *models.Config, env models.Environment) (*snowflake.Service, error) {
	password, err := config.ResolvePassword(&cfg.Snowflake)
	if err != nil {
		return nil, err
	}

	timeout := 30 * time.Second
	if cfg.Deployment.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Deployment.Timeout); err == nil {
			timeout = d
		}
	}

	warehouse := cfg.Snowflake.Warehouse
	if env.Warehouse.Name != "" {
		warehouse = env.Warehouse.Name
	}

	svc := snowflake.NewService(snowflake.Config{
		Account:   cfg.Snowflake.Account,
		Username:  cfg.Snowflake.Username,
		Password:  password,
		Database:  env.Database,
		Schema:    cfg.Snowflake.Schema,
		Warehouse: warehouse,
		Role:      cfg.Snowflake.Role,
		Timeout:   timeout,
	})
	if err := svc.Connect(); err != nil {
		return nil, err
	}
	return svc, nil
}

// resolveDDLRoot returns the directory holding the deployment scripts.
// With sync set the DDL repository is cloned or fetched first;
// otherwise an existing checkout is used as-is.
func resolveDDLRoot(ctx context.Context, cfg *models.Config, sync bool) (string, error) {
	svc := repo.NewService().WithMaxRetries(cfg.Deployment.MaxRetries)
	if sync {
		return svc.Sync(ctx, cfg.Repository)
	}
	return svc.Root(cfg.Repository)
}
