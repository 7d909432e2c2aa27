package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// CredentialSource identifies where API credentials come from.
type CredentialSource string

const (
	SourceEnv     CredentialSource = "environment"
	SourceConfig  CredentialSource = "config_file"
	SourceBedrock CredentialSource = "bedrock"
	SourceNone    CredentialSource = "none"
)

// Credentials describes how the API client should authenticate.
type Credentials struct {
	// APIKey is the Anthropic key for direct API access. Empty when
	// Bedrock is in use.
	APIKey string
	// Source records where the credentials were found.
	Source CredentialSource
	// Bedrock is true when requests route through AWS Bedrock using
	// the ambient AWS credential chain instead of an API key.
	Bedrock bool
	// Region and Profile configure the AWS session for Bedrock.
	Region  string
	Profile string
}

// ResolveCredentials determines the authentication mode for the API
// client. Bedrock mode wins when enabled; otherwise the key comes
// from ANTHROPIC_API_KEY, then the config file.
func ResolveCredentials(cfg *Config) (Credentials, error) {
	if cfg != nil && cfg.Anthropic.UseBedrock {
		return Credentials{
			Source:  SourceBedrock,
			Bedrock: true,
			Region:  cfg.Anthropic.Region,
			Profile: cfg.Anthropic.Profile,
		}, nil
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return Credentials{APIKey: key, Source: SourceEnv}, nil
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return Credentials{APIKey: key, Source: SourceConfig}, nil
		}
	}

	return Credentials{Source: SourceNone}, ErrNoAPIKey
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	// Keys should be reasonably long
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}
