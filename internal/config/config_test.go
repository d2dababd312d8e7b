package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, BackendFirestore, cfg.Backend)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "家族", cfg.FallbackName)
	assert.Equal(t, "らむ", cfg.Members["ramu@example.com"])
	assert.Len(t, cfg.Presets, 9)
	require.NotNil(t, cfg.Location)
}

func TestValidate_FirestoreRequiresBothSettings(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.Contains(t, err.Error(), "FIREBASE_PROJECT_ID")
	assert.Contains(t, err.Error(), "FIREBASE_API_KEY")

	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"FIREBASE_PROJECT_ID": "family"})))
	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.NotContains(t, err.Error(), "FIREBASE_PROJECT_ID")

	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"FIREBASE_API_KEY": "key"})))
	require.NoError(t, cfg.Validate())
}

func TestValidate_PostgresAndMemory(t *testing.T) {
	cfg := Defaults()
	cfg.Backend = BackendPostgres
	cfg.APIKey = "key"
	require.ErrorIs(t, cfg.Validate(), ErrMissingSetting)
	cfg.DatabaseURL = "postgres://localhost/quicklist"
	require.NoError(t, cfg.Validate())

	cfg = Defaults()
	cfg.Backend = BackendMemory
	require.NoError(t, cfg.Validate())

	cfg.Backend = "mongo"
	require.Error(t, cfg.Validate())
}

func TestApplyEnv_OverridesLists(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"QUICKLIST_BACKEND": " Memory ",
		"QUICKLIST_MEMBERS": "A@example.com=あ, b@example.com=び",
		"QUICKLIST_PRESETS": "牛乳, ,卵",
		"QUICKLIST_TZ":      "UTC",
		"PORT":              "9000",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, map[string]string{"a@example.com": "あ", "b@example.com": "び"}, cfg.Members)
	assert.Equal(t, []string{"牛乳", "卵"}, cfg.Presets)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, "9000", cfg.Port)
}

func TestApplyEnv_RejectsBadValues(t *testing.T) {
	require.Error(t, Defaults().ApplyEnv(envMap(map[string]string{"QUICKLIST_MEMBERS": "nobody"})))
	require.Error(t, Defaults().ApplyEnv(envMap(map[string]string{"QUICKLIST_TZ": "Mars/Base"})))
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("QUICKLIST_TEST_ONLY_PORT_SENTINEL=1\nLINE_CHANNEL_TOKEN=tok\nLINE_CHANNEL_SECRET=sec\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("QUICKLIST_TEST_ONLY_PORT_SENTINEL")
		os.Unsetenv("LINE_CHANNEL_TOKEN")
		os.Unsetenv("LINE_CHANNEL_SECRET")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.LineEnabled())
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
