package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter Store names for the required credentials.
const (
	ParamHandle   = "/aithreads/bluesky/handle"
	ParamPassword = "/aithreads/bluesky/password"
	ParamDeviceID = "/aithreads/bluesky/device_id"
	ParamAPIKey   = "/aithreads/gemini/api_key"
	ParamDryRun   = "/aithreads/settings/dry_run"
)

// ParameterGetter is the subset of the SSM client the loader needs.
type ParameterGetter interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMConfigLoader handles loading configuration from SSM Parameter Store
type SSMConfigLoader struct {
	client ParameterGetter
}

// NewSSMConfigLoader creates a loader backed by the default AWS credential chain.
func NewSSMConfigLoader(ctx context.Context) (*SSMConfigLoader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SSMConfigLoader{client: ssm.NewFromConfig(cfg)}, nil
}

// NewSSMConfigLoaderWithClient wraps an existing SSM client.
func NewSSMConfigLoaderWithClient(client ParameterGetter) *SSMConfigLoader {
	return &SSMConfigLoader{client: client}
}

// LoadConfig resolves the credentials from Parameter Store, then applies the
// environment, defaults and validation exactly as Load does.
func (s *SSMConfigLoader) LoadConfig(ctx context.Context) (*Config, error) {
	parameterNames := []string{
		ParamHandle,
		ParamPassword,
		ParamDeviceID,
		ParamAPIKey,
		ParamDryRun,
	}

	result, err := s.client.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          parameterNames,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters: %w", err)
	}

	params := make(map[string]string)
	for _, p := range result.Parameters {
		if p.Name != nil && p.Value != nil {
			params[*p.Name] = *p.Value
		}
	}

	// dry_run is optional; anything else reported invalid is a hard error.
	var invalid []string
	for _, name := range result.InvalidParameters {
		if name != ParamDryRun {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return nil, &ConfigError{
			Message: "Invalid parameters found",
			Missing: invalid,
		}
	}

	cfg := &Config{
		Bluesky: BlueskyConfig{
			Handle:   params[ParamHandle],
			Password: params[ParamPassword],
			DeviceID: params[ParamDeviceID],
		},
		Gemini: GeminiConfig{
			APIKey: params[ParamAPIKey],
		},
	}
	if b, ok := parseBool(params[ParamDryRun]); ok {
		cfg.Settings.DryRun = b
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
