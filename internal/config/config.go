// Package config provides the configuration schema and loader for the
// scribed transcription gateway.
package config

// LogLevel controls log verbosity for the scribed server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for scribed.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	Store  Store  `yaml:"store"`
	Engine Engine `yaml:"engine"`
	Chunks Chunks `yaml:"chunks"`
}

// Server holds network and logging settings.
type Server struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLS `yaml:"tls"`
}

// TLS holds TLS certificate paths for enabling HTTPS.
type TLS struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// Auth configures bearer-token verification for the WebSocket endpoint.
type Auth struct {
	// Issuer, when set, is required as the token "iss" claim.
	Issuer string `yaml:"issuer"`

	// Audience, when set, must appear in the token "aud" claim.
	Audience string `yaml:"audience"`

	// HMACSecret is the shared HS256 signing secret. Prefer SecretFile in
	// production so the secret stays out of the config file.
	HMACSecret string `yaml:"hmac_secret"`

	// SecretFile is a path to a file holding the signing secret. Takes
	// precedence over HMACSecret when both are set.
	SecretFile string `yaml:"secret_file"`
}

// Store configures the durable metadata store.
type Store struct {
	// PostgresDSN selects the PostgreSQL-backed store. When empty, an
	// in-memory store is used and nothing survives a restart.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Engine configures the transcription engine.
type Engine struct {
	// ModelPath is the whisper.cpp GGML model file. Required; a missing or
	// unloadable model is a fatal startup condition.
	ModelPath string `yaml:"model_path"`

	// Language is the default language hint for sessions that do not
	// declare one. "auto" enables model-side detection.
	Language string `yaml:"language"`

	// Workers bounds concurrent transcriptions. Defaults to 2.
	Workers int `yaml:"workers"`
}

// Chunks configures the scratch chunk store.
type Chunks struct {
	// Dir is the directory for staged chunk files. Defaults to a directory
	// under os.TempDir when empty.
	Dir string `yaml:"dir"`
}
