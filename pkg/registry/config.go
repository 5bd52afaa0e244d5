package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AuthScheme describes how the API credential is attached to upstream requests. Offers
// disagree on the header ("X-Authorization: socapi <token>" vs "X-API-KEY: <token>"),
// so it is deployment configuration.
type AuthScheme struct {
	Header string `yaml:"header"`
	Prefix string `yaml:"prefix"`
}

// Value renders the header value for token.
func (a AuthScheme) Value(token string) string {
	prefix := strings.TrimSpace(a.Prefix)
	if prefix == "" {
		return token
	}
	return prefix + " " + token
}

// Config is the upstream registry profile.
//
// Example (YAML):
//
//	base_url: https://api.societe.com/api/v1
//	auth:
//	  header: X-Authorization
//	  prefix: socapi
//	revenue_paths:
//	  - entreprise/{id}/bilans
//	  - entreprise/{id}/finances
//	profile_path: entreprise/{id}
type Config struct {
	BaseURL      string     `yaml:"base_url"`
	Auth         AuthScheme `yaml:"auth"`
	RevenuePaths []string   `yaml:"revenue_paths"`
	ProfilePath  string     `yaml:"profile_path"`

	// CAPath is an optional PEM bundle trusted for TLS.
	CAPath string `yaml:"ca_path"`
}

const idPlaceholder = "{id}"

// DefaultConfig targets the societe.com v1 API, most financially specific resource first.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.societe.com/api/v1",
		Auth: AuthScheme{
			Header: "X-Authorization",
			Prefix: "socapi",
		},
		RevenuePaths: []string{
			"entreprise/{id}/bilans",
			"entreprise/{id}/finances",
			"entreprise/{id}/profilfinancier",
			"entreprise/{id}/profil-financier",
			"entreprise/{id}/informations-financieres",
		},
		ProfilePath: "entreprise/{id}",
	}
}

// Validate checks that the profile can build request URLs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("registry base_url is required")
	}
	if strings.TrimSpace(c.Auth.Header) == "" {
		return fmt.Errorf("registry auth.header is required")
	}
	if len(c.RevenuePaths) == 0 {
		return fmt.Errorf("registry revenue_paths must not be empty")
	}
	for _, p := range c.RevenuePaths {
		if !strings.Contains(p, idPlaceholder) {
			return fmt.Errorf("registry revenue path %q must contain %s", p, idPlaceholder)
		}
	}
	if !strings.Contains(c.ProfilePath, idPlaceholder) {
		return fmt.Errorf("registry profile_path %q must contain %s", c.ProfilePath, idPlaceholder)
	}
	return nil
}

// LoadConfigFile reads a YAML profile. Keys missing from the file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read registry config: %w", err)
	}

	var raw Config
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Config{}, fmt.Errorf("parse registry config YAML: %w", err)
	}
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(raw.Auth.Header); v != "" {
		cfg.Auth.Header = v
		// An explicit header without prefix means a bare key.
		cfg.Auth.Prefix = strings.TrimSpace(raw.Auth.Prefix)
	}
	if len(raw.RevenuePaths) > 0 {
		cfg.RevenuePaths = trimAll(raw.RevenuePaths)
	}
	if v := strings.TrimSpace(raw.ProfilePath); v != "" {
		cfg.ProfilePath = v
	}
	if v := strings.TrimSpace(raw.CAPath); v != "" {
		cfg.CAPath = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
