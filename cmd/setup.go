package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"retailworks/internal/config"
	"retailworks/internal/ui"
	"retailworks/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the toolkit configuration interactively",
	Long: `Walk through connection settings and write the configuration
file. The Snowflake password is stored in the system keyring, not in
the file.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	ui.ShowHeader("RetailWorks Setup")

	if config.Exists() {
		ok, err := ui.Confirm(fmt.Sprintf("Configuration %s already exists, overwrite?", config.GetConfigFile()))
		if err != nil || !ok {
			ui.ShowWarning("Setup cancelled")
			return nil
		}
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = &models.Config{}
	}

	account, err := ui.AskString("Snowflake account identifier:", cfg.Snowflake.Account)
	if err != nil {
		return err
	}
	username, err := ui.AskString("Username:", cfg.Snowflake.Username)
	if err != nil {
		return err
	}
	role, err := ui.AskString("Role:", defaultString(cfg.Snowflake.Role, "SYSADMIN"))
	if err != nil {
		return err
	}
	warehouse, err := ui.AskString("Warehouse:", defaultString(cfg.Snowflake.Warehouse, "COMPUTE_WH"))
	if err != nil {
		return err
	}

	password, err := ui.AskPassword("Password (stored in system keyring):")
	if err != nil {
		return err
	}

	envName, err := ui.SelectOption("Default environment:", []string{"dev", "test", "prod"})
	if err != nil {
		return err
	}

	cfg.Snowflake.Account = account
	cfg.Snowflake.Username = username
	cfg.Snowflake.Role = role
	cfg.Snowflake.Warehouse = warehouse

	if len(cfg.Environments) == 0 {
		cfg.Environments = []models.Environment{
			{Name: "dev", Database: "RETAILWORKS_DB_DEV", SchemaSuffix: "_DEV"},
			{Name: "test", Database: "RETAILWORKS_DB_TEST", SchemaSuffix: "_TEST"},
			{Name: "prod", Database: "RETAILWORKS_DB", SchemaSuffix: ""},
		}
	}

	if password != "" {
		if err := config.StorePassword(username, password); err != nil {
			ui.ShowWarning(fmt.Sprintf("Could not store password in keyring: %v", err))
			ui.ShowInfo("Set SNOWFLAKE_PASSWORD in the environment instead")
		}
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	ui.ShowSuccess(fmt.Sprintf("Configuration written to %s", config.GetConfigFile()))
	ui.ShowInfo(fmt.Sprintf("Default environment: %s (override with --environment)", envName))
	return nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
