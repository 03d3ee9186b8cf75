package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvHandle, EnvPassword, EnvDeviceID, EnvAPIKey, "BLUESKY_HOST", "GEMINI_MODEL", "POST_SCHEDULE", "DRY_RUN", "RETRY_ATTEMPTS"} {
		t.Setenv(key, "")
	}
}

func TestValidateNamesAllMissingKeys(t *testing.T) {
	cfg := &Config{Bluesky: BlueskyConfig{Handle: "bot.bsky.social"}}

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{EnvPassword, EnvDeviceID, EnvAPIKey}, cfgErr.Missing)
	assert.Contains(t, err.Error(), "BLUESKY_PASSWORD, BLUESKY_DEVICE_ID, GEMINI_API_KEY")
}

func TestValidateTreatsWhitespaceAsMissing(t *testing.T) {
	cfg := &Config{
		Bluesky: BlueskyConfig{Handle: "h", Password: "p", DeviceID: "   "},
		Gemini:  GeminiConfig{APIKey: "k"},
	}

	var cfgErr *ConfigError
	require.True(t, errors.As(cfg.Validate(), &cfgErr))
	assert.Equal(t, []string{EnvDeviceID}, cfgErr.Missing)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(EnvHandle, "bot.bsky.social")
	t.Setenv(EnvPassword, "app-password")
	t.Setenv(EnvDeviceID, "device-1")
	t.Setenv(EnvAPIKey, "gemini-key")
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "bot.bsky.social", cfg.Bluesky.Handle)
	assert.Equal(t, "https://bsky.social", cfg.Bluesky.Host)
	assert.Equal(t, "0 */6 * * *", cfg.Settings.Schedule)
	require.NotNil(t, cfg.Settings.RetryAttempts)
	assert.Equal(t, 3, cfg.Settings.Retries())
	assert.Equal(t, 5*time.Second, cfg.Settings.RetryDelay)
	assert.Equal(t, 3*time.Second, cfg.Settings.PostInterval)
	assert.Equal(t, 280, cfg.Settings.MaxPostLength)
	assert.Len(t, cfg.Settings.Topics, 12)
	assert.True(t, cfg.Settings.DryRun)
}

func TestLoadFailsWithoutCredentials(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	_, err := Load("")

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Len(t, cfgErr.Missing, 4)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yamlData := `bluesky:
  handle: file.bsky.social
  password: file-password
  device_id: file-device
gemini:
  api_key: file-key
settings:
  post_interval: 10s
  topics:
    - only topic
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))
	t.Setenv(EnvHandle, "env.bsky.social")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env.bsky.social", cfg.Bluesky.Handle)
	assert.Equal(t, "file-password", cfg.Bluesky.Password)
	assert.Equal(t, 10*time.Second, cfg.Settings.PostInterval)
	assert.Equal(t, []string{"only topic"}, cfg.Settings.Topics)
}

func TestLoadKeepsExplicitZeroRetries(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yamlData := `bluesky:
  handle: file.bsky.social
  password: file-password
  device_id: file-device
gemini:
  api_key: file-key
settings:
  retry_attempts: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Settings.Retries())

	t.Setenv("RETRY_ATTEMPTS", "5")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Settings.Retries())
}

func TestApplyEnvDryRunParsing(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"yes", false},
		{"", false},
	}
	for _, tt := range tests {
		var cfg Config
		cfg.ApplyEnv(func(key string) string {
			if key == "DRY_RUN" {
				return tt.value
			}
			return ""
		})
		assert.Equal(t, tt.want, cfg.Settings.DryRun, "DRY_RUN=%q", tt.value)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bluesky: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

type fakeSSM struct {
	output *ssm.GetParametersOutput
	input  *ssm.GetParametersInput
}

func (f *fakeSSM) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.input = in
	return f.output, nil
}

func param(name, value string) types.Parameter {
	return types.Parameter{Name: aws.String(name), Value: aws.String(value)}
}

func TestSSMConfigLoader(t *testing.T) {
	clearEnv(t)
	fake := &fakeSSM{output: &ssm.GetParametersOutput{
		Parameters: []types.Parameter{
			param(ParamHandle, "ssm.bsky.social"),
			param(ParamPassword, "ssm-password"),
			param(ParamDeviceID, "ssm-device"),
			param(ParamAPIKey, "ssm-key"),
		},
		InvalidParameters: []string{ParamDryRun},
	}}

	cfg, err := NewSSMConfigLoaderWithClient(fake).LoadConfig(context.Background())
	require.NoError(t, err)

	assert.True(t, aws.ToBool(fake.input.WithDecryption))
	assert.Equal(t, "ssm.bsky.social", cfg.Bluesky.Handle)
	assert.Equal(t, "ssm-key", cfg.Gemini.APIKey)
	assert.False(t, cfg.Settings.DryRun)
}

func TestSSMConfigLoaderReportsInvalidParameters(t *testing.T) {
	clearEnv(t)
	fake := &fakeSSM{output: &ssm.GetParametersOutput{
		InvalidParameters: []string{ParamHandle, ParamAPIKey},
	}}

	_, err := NewSSMConfigLoaderWithClient(fake).LoadConfig(context.Background())

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{ParamHandle, ParamAPIKey}, cfgErr.Missing)
}

func TestSSMConfigLoaderParsesDryRunLikeEnvironment(t *testing.T) {
	for _, value := range []string{"true", "True", "1", "t"} {
		clearEnv(t)
		fake := &fakeSSM{output: &ssm.GetParametersOutput{
			Parameters: []types.Parameter{
				param(ParamHandle, "ssm.bsky.social"),
				param(ParamPassword, "ssm-password"),
				param(ParamDeviceID, "ssm-device"),
				param(ParamAPIKey, "ssm-key"),
				param(ParamDryRun, value),
			},
		}}

		cfg, err := NewSSMConfigLoaderWithClient(fake).LoadConfig(context.Background())
		require.NoError(t, err)
		assert.True(t, cfg.Settings.DryRun, "dry_run=%q", value)
	}
}
