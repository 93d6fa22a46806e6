package config

import (
	"os"

	"github.com/zalando/go-keyring"

	"retailworks/pkg/errors"
	"retailworks/pkg/models"
)

const keyringService = "retailworks"

// ResolvePassword resolves the Snowflake password for a connection, in
// order: plain config value, ENC[...] config value (decrypted with the
// RETAILWORKS_PASSPHRASE env var), OS keyring, SNOWFLAKE_PASSWORD env var.
func ResolvePassword(sf *models.Snowflake) (string, error) {
	if sf.Password != "" && !IsEncrypted(sf.Password) {
		return sf.Password, nil
	}

	if IsEncrypted(sf.Password) {
		passphrase := os.Getenv("RETAILWORKS_PASSPHRASE")
		plain, err := DecryptValue(sf.Password, passphrase)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeCredentialsError,
				"Failed to decrypt configured password").
				WithSuggestions("Set RETAILWORKS_PASSPHRASE to the passphrase used at encryption time")
		}
		return plain, nil
	}

	if secret, err := keyring.Get(keyringService, sf.Username); err == nil && secret != "" {
		return secret, nil
	}

	if env := os.Getenv("SNOWFLAKE_PASSWORD"); env != "" {
		return env, nil
	}

	return "", errors.New(errors.ErrCodeCredentialsError, "No Snowflake password configured").
		WithContext("user", sf.Username).
		WithSuggestions(
			"Set snowflake.password in the config file",
			"Store the password in the OS keyring with 'retailworks config set-password'",
			"Export SNOWFLAKE_PASSWORD",
		)
}

// StorePassword saves a password in the OS keyring
func StorePassword(username, password string) error {
	if err := keyring.Set(keyringService, username, password); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsError, "Failed to store password in keyring").
			WithContext("user", username)
	}
	return nil
}

// DeletePassword removes a stored password from the OS keyring
func DeletePassword(username string) error {
	if err := keyring.Delete(keyringService, username); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsError, "Failed to delete password from keyring").
			WithContext("user", username)
	}
	return nil
}
