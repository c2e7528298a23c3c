package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	domainconfig "github.com/felixgeelhaar/adcompliance/domain/config"
)

// Credentials are the Azure OpenAI connection settings read from the
// environment.
type Credentials struct {
	Endpoint   string `envconfig:"AZURE_ENDPOINT"`
	APIKey     string `envconfig:"AZURE_API_KEY"`
	APIVersion string `envconfig:"AZURE_API_VERSION"`
}

// LoadDotEnv loads variables from the given files without overriding the
// ones already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadCredentials reads the AZURE_* variables and fails on the first one that
// is missing. The key is optional when authenticating with Azure identity.
func LoadCredentials(auth string) (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", domainconfig.ErrInvalidConfig, err)
	}

	required := []struct {
		name  string
		value string
	}{
		{"AZURE_ENDPOINT", c.Endpoint},
		{"AZURE_API_KEY", c.APIKey},
		{"AZURE_API_VERSION", c.APIVersion},
	}
	for _, r := range required {
		if r.name == "AZURE_API_KEY" && auth == domainconfig.AuthAzureIdentity {
			continue
		}
		if r.value == "" {
			return Credentials{}, fmt.Errorf("%w: %s is not set", domainconfig.ErrMissingCredential, r.name)
		}
	}
	return c, nil
}

// overrides are optional ADCOMPLIANCE_* variables applied over the file.
type overrides struct {
	LogLevel     string `envconfig:"LOG_LEVEL"`
	LogFormat    string `envconfig:"LOG_FORMAT"`
	OutputDir    string `envconfig:"OUTPUT_DIR"`
	CacheBackend string `envconfig:"CACHE_BACKEND"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	KnowledgeDSN string `envconfig:"KNOWLEDGE_DSN"`
}

// ApplyEnvOverrides applies ADCOMPLIANCE_* variables onto cfg.
func ApplyEnvOverrides(cfg *domainconfig.AppConfig) error {
	var o overrides
	if err := envconfig.Process("ADCOMPLIANCE", &o); err != nil {
		return fmt.Errorf("%w: %v", domainconfig.ErrInvalidConfig, err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Logging.Format, o.LogFormat)
	set(&cfg.Output.Dir, o.OutputDir)
	set(&cfg.Retrieval.Cache.Backend, o.CacheBackend)
	set(&cfg.Retrieval.Cache.Redis.Addr, o.RedisAddr)
	set(&cfg.Knowledge.DSN, o.KnowledgeDSN)
	return nil
}
