package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultWorkers is applied when engine.workers is unset.
const defaultWorkers = 2

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = defaultWorkers
	}
	if cfg.Chunks.Dir == "" {
		cfg.Chunks.Dir = filepath.Join(os.TempDir(), "scribed-chunks")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Auth.HMACSecret == "" && cfg.Auth.SecretFile == "" {
		errs = append(errs, errors.New("auth requires hmac_secret or secret_file"))
	}

	if cfg.Engine.ModelPath == "" {
		errs = append(errs, errors.New("engine.model_path is required"))
	}
	if cfg.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers %d is invalid; must be >= 1", cfg.Engine.Workers))
	}

	return errors.Join(errs...)
}

// SigningSecret resolves the auth signing secret, reading SecretFile when
// configured and falling back to the inline value otherwise.
func (a Auth) SigningSecret() ([]byte, error) {
	if a.SecretFile != "" {
		data, err := os.ReadFile(a.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("config: read auth.secret_file: %w", err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return nil, fmt.Errorf("config: auth.secret_file %q is empty", a.SecretFile)
		}
		return []byte(secret), nil
	}
	return []byte(a.HMACSecret), nil
}
