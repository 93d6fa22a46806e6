package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"retailworks/internal/config"
	"retailworks/internal/ui"
	"retailworks/pkg/errors"
)

var configEncryptBackup bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage stored credentials and secrets",
}

var configSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Store the Snowflake password in the OS keyring",
	RunE:  runConfigSetPassword,
}

var configDeletePasswordCmd = &cobra.Command{
	Use:   "delete-password",
	Short: "Remove the Snowflake password from the OS keyring",
	RunE:  runConfigDeletePassword,
}

var configEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt the configured password",
	Long: `Replace the plaintext snowflake.password value in the
configuration file with an ENC[...] value encrypted under a
passphrase. At runtime the password is decrypted with the
RETAILWORKS_PASSPHRASE environment variable.`,
	RunE: runConfigEncrypt,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetPasswordCmd, configDeletePasswordCmd, configEncryptCmd)

	configEncryptCmd.Flags().BoolVar(&configEncryptBackup, "backup", true, "keep a backup of the original config file")
}

func runConfigSetPassword(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	password, err := ui.AskPassword(fmt.Sprintf("Password for %s:", cfg.Snowflake.Username))
	if err != nil {
		return err
	}
	if err := config.StorePassword(cfg.Snowflake.Username, password); err != nil {
		return err
	}
	ui.ShowSuccess("Password stored in the OS keyring")
	return nil
}

func runConfigDeletePassword(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := config.DeletePassword(cfg.Snowflake.Username); err != nil {
		return err
	}
	ui.ShowSuccess("Password removed from the OS keyring")
	return nil
}

func runConfigEncrypt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Snowflake.Password == "" {
		return errors.New(errors.ErrCodeCredentialsError,
			"No password set in the configuration file").
			WithSuggestions("Set snowflake.password before encrypting, or use the keyring via 'retailworks config set-password'")
	}
	if config.IsEncrypted(cfg.Snowflake.Password) {
		ui.ShowInfo("Password is already encrypted")
		return nil
	}

	passphrase := os.Getenv("RETAILWORKS_PASSPHRASE")
	if passphrase == "" {
		passphrase, err = ui.AskPassword("Encryption passphrase:")
		if err != nil {
			return err
		}
	}

	if configEncryptBackup {
		configFile := config.GetConfigFile()
		data, err := os.ReadFile(configFile) // #nosec G304 - toolkit config path
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := os.WriteFile(configFile+".backup", data, 0600); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		ui.ShowInfo(fmt.Sprintf("Created backup: %s.backup", configFile))
	}

	encrypted, err := config.EncryptValue(cfg.Snowflake.Password, passphrase)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsError, "Failed to encrypt password")
	}
	cfg.Snowflake.Password = encrypted

	if err := config.Save(cfg); err != nil {
		return err
	}

	ui.ShowSuccess("Configuration password encrypted")
	ui.ShowInfo("Export RETAILWORKS_PASSPHRASE so the toolkit can decrypt it at runtime")
	return nil
}
