package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// TokenEnv names the environment variable holding the upstream API credential.
const TokenEnv = "SOC_API_KEY"

// ErrMissingToken reports that the server-side credential is not configured.
var ErrMissingToken = errors.New(TokenEnv + " missing")

// TokenSource returns the credential for one upstream request.
type TokenSource func() (string, error)

// EnvToken reads TokenEnv on every call, so a rotated or removed secret takes effect
// without a restart.
func EnvToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnv))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// StaticToken returns a TokenSource for a fixed credential.
func StaticToken(token string) TokenSource {
	token = strings.TrimSpace(token)
	return func() (string, error) {
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}

// LoadConfigFromEnv builds the upstream profile.
//
// Optional:
//   - REGISTRY_CONFIG (YAML file path)
//   - REGISTRY_BASE_URL
//   - REGISTRY_AUTH_HEADER, REGISTRY_AUTH_PREFIX
//   - REGISTRY_CA_PATH
func LoadConfigFromEnv() (Config, error) {
	cfg, err := LoadConfigFile(os.Getenv("REGISTRY_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	if v := strings.TrimSpace(os.Getenv("REGISTRY_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v, ok := os.LookupEnv("REGISTRY_AUTH_HEADER"); ok && strings.TrimSpace(v) != "" {
		cfg.Auth.Header = strings.TrimSpace(v)
		cfg.Auth.Prefix = ""
	}
	if v, ok := os.LookupEnv("REGISTRY_AUTH_PREFIX"); ok {
		cfg.Auth.Prefix = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("REGISTRY_CA_PATH")); v != "" {
		cfg.CAPath = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("registry config: %w", err)
	}
	return cfg, nil
}
