package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailworks/pkg/models"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	t.Setenv("RETAILWORKS_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &models.Config{}, cfg)
	assert.False(t, Exists())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RETAILWORKS_CONFIG", configFile)

	original := &models.Config{
		Snowflake: models.Snowflake{
			Account:   "xy12345.us-east-1",
			Username:  "deployer",
			Role:      "SYSADMIN",
			Warehouse: "RETAILWORKS_DEV_WH",
		},
		Environments: []models.Environment{
			{Name: "dev", Database: "RETAILWORKS_DB_DEV", SchemaSuffix: "_DEV"},
			{Name: "prod", Database: "RETAILWORKS_DB", SchemaSuffix: ""},
		},
		Deployment: models.Deployment{ContinueOnError: true},
	}

	require.NoError(t, Save(original))
	assert.True(t, Exists())

	info, err := os.Stat(configFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RETAILWORKS_CONFIG", configFile)
	require.NoError(t, os.WriteFile(configFile, []byte("snowflake: [not a map"), 0600))

	_, err := Load()
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptValue("hunter2", "passphrase")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(encrypted))
	assert.NotContains(t, encrypted, "hunter2")

	plain, err := DecryptValue(encrypted, "passphrase")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestDecryptWithWrongPassphraseFails(t *testing.T) {
	encrypted, err := EncryptValue("hunter2", "passphrase")
	require.NoError(t, err)

	_, err = DecryptValue(encrypted, "wrong")
	assert.Error(t, err)
}

func TestDecryptRejectsPlainValue(t *testing.T) {
	_, err := DecryptValue("not-encrypted", "passphrase")
	assert.Error(t, err)
}

func TestResolvePasswordPrecedence(t *testing.T) {
	t.Run("plain config value wins", func(t *testing.T) {
		sf := &models.Snowflake{Username: "deployer", Password: "plain"}
		password, err := ResolvePassword(sf)
		require.NoError(t, err)
		assert.Equal(t, "plain", password)
	})

	t.Run("encrypted config value is decrypted", func(t *testing.T) {
		encrypted, err := EncryptValue("sekret", "pp")
		require.NoError(t, err)
		t.Setenv("RETAILWORKS_PASSPHRASE", "pp")

		sf := &models.Snowflake{Username: "deployer", Password: encrypted}
		password, err := ResolvePassword(sf)
		require.NoError(t, err)
		assert.Equal(t, "sekret", password)
	})

	t.Run("encrypted value without passphrase fails", func(t *testing.T) {
		encrypted, err := EncryptValue("sekret", "pp")
		require.NoError(t, err)
		t.Setenv("RETAILWORKS_PASSPHRASE", "")

		sf := &models.Snowflake{Username: "deployer", Password: encrypted}
		_, err = ResolvePassword(sf)
		assert.Error(t, err)
	})

	t.Run("environment variable fallback", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_PASSWORD", "from-env")

		sf := &models.Snowflake{Username: "nobody-in-keyring"}
		password, err := ResolvePassword(sf)
		require.NoError(t, err)
		assert.Equal(t, "from-env", password)
	})
}
