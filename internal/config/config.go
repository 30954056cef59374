// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package config loads WayGate settings from a YAML file and command-line
// flags, with secrets taken from the environment.
package config

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/logging"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
	"github.com/waygate/waygate/internal/xdg"
)

// CodeInvalid is returned for any configuration that fails validation.
const CodeInvalid = "CONFIG_INVALID"

// Default values.
const (
	defaultRegion      = string(region.EN)
	defaultTimeout     = backend.DefaultTimeout
	defaultMaxRetries  = backend.DefaultMaxRetries
	defaultLogFormat   = logging.FormatJSON
	defaultLogLevel    = "info"
	defaultListenAddr  = "127.0.0.1:8080"
	defaultMetricsAddr = "127.0.0.1:9101"
)

// Config is the merged configuration.
type Config struct {
	DefaultRegion string `koanf:"default_region"`
	HTTP          HTTP   `koanf:"http"`
	Log           Log    `koanf:"log"`
	ListenAddr    string `koanf:"listen_addr"`
	MetricsAddr   string `koanf:"metrics_addr"`
	SignRequests  bool   `koanf:"sign_requests"`

	// Endpoints pins individual services: endpoints.<region>.<service>.
	// The pseudo-service "passport" replaces the passport base URL.
	Endpoints map[string]map[string]string `koanf:"endpoints"`

	// NetworkConfig replaces the remote configuration document URL per
	// region: network_config.<region>.
	NetworkConfig map[string]string `koanf:"network_config"`
}

// ServicePassport is the endpoints key for the passport base URL.
const ServicePassport = "passport"

// HTTP configures the outbound client.
type HTTP struct {
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// Log configures logging.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DefaultRegion: defaultRegion,
		HTTP:          HTTP{Timeout: defaultTimeout, MaxRetries: defaultMaxRetries},
		Log:           Log{Format: defaultLogFormat, Level: defaultLogLevel},
		ListenAddr:    defaultListenAddr,
		MetricsAddr:   defaultMetricsAddr,
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"region":        "default_region",
	"timeout":       "http.timeout",
	"max-retries":   "http.max_retries",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"listen-addr":   "listen_addr",
	"metrics-addr":  "metrics_addr",
	"sign-requests": "sign_requests",
}

// RegisterFlags adds the flags Load understands to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "config file path (default $XDG_CONFIG_HOME/waygate/config.yaml)")
	flags.String("region", d.DefaultRegion, "default region (cn, bili, en, jp, kr, tw)")
	flags.Duration("timeout", d.HTTP.Timeout, "outbound HTTP timeout")
	flags.Int("max-retries", d.HTTP.MaxRetries, "transport retries for idempotent requests")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.Bool("sign-requests", d.SignRequests, "sign u8 token requests with WAYGATE_U8_SIGNING_KEY")
}

// Load merges defaults, the config file and flags, in increasing
// precedence. A missing default config file is not an error; a missing
// explicit --config file is.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, explicit, err := configPath(flags)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code(CodeInvalid).With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		flagProvider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(flagProvider, nil); err != nil {
			return nil, oops.Code(CodeInvalid).With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeInvalid).Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(flags *pflag.FlagSet) (string, bool, error) {
	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && p != "" {
			return p, true, nil
		}
	}
	p, err := xdg.ConfigFile()
	return p, false, err
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := region.Parse(c.DefaultRegion); err != nil {
		return oops.Code(CodeInvalid).With("key", "default_region").Wrap(err)
	}
	if c.HTTP.Timeout <= 0 {
		return oops.Code(CodeInvalid).With("key", "http.timeout").Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.MaxRetries < 0 {
		return oops.Code(CodeInvalid).With("key", "http.max_retries").Errorf("http.max_retries must not be negative, got %d", c.HTTP.MaxRetries)
	}
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		return err
	}
	if err := logging.ValidateLevel(c.Log.Level); err != nil {
		return err
	}
	for rg, services := range c.Endpoints {
		if err := region.Region(rg).Validate(); err != nil {
			return oops.Code(CodeInvalid).With("key", "endpoints."+rg).Wrap(err)
		}
		for service, raw := range services {
			if err := validateURL("endpoints."+rg+"."+service, raw); err != nil {
				return err
			}
		}
	}
	for rg, raw := range c.NetworkConfig {
		if err := region.Region(rg).Validate(); err != nil {
			return oops.Code(CodeInvalid).With("key", "network_config."+rg).Wrap(err)
		}
		if err := validateURL("network_config."+rg, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return oops.Code(CodeInvalid).
			With("key", key).
			Errorf("%s: %q is not an absolute http(s) URL", key, raw)
	}
	return nil
}

// Region returns the parsed default region.
func (c *Config) Region() region.Region {
	return region.Region(c.DefaultRegion)
}

// RegistryOptions translates the config into backend registry options.
func (c *Config) RegistryOptions() []backend.RegistryOption {
	opts := []backend.RegistryOption{
		backend.WithHTTPClient(&http.Client{Timeout: c.HTTP.Timeout}),
		backend.WithMaxRetries(uint64(c.HTTP.MaxRetries)), //nolint:gosec // validated non-negative
		backend.WithLoadTimeout(c.HTTP.Timeout * time.Duration(c.HTTP.MaxRetries+1)),
	}
	for rg, services := range c.Endpoints {
		for service, u := range services {
			if service == ServicePassport {
				continue
			}
			opts = append(opts, backend.WithEndpointOverride(region.Region(rg), service, u))
		}
	}
	for rg, u := range c.NetworkConfig {
		opts = append(opts, backend.WithConfigURL(region.Region(rg), u))
	}
	return opts
}

// PassportURL returns the configured passport base URL for rg, or "" to
// use the region's default.
func (c *Config) PassportURL(rg region.Region) string {
	return c.Endpoints[string(rg)][ServicePassport]
}

// PayloadSigner returns the u8 payload signer. With sign_requests off it
// never signs; with it on, WAYGATE_U8_SIGNING_KEY must be set.
func (c *Config) PayloadSigner() (provider.PayloadSigner, error) {
	if !c.SignRequests {
		return provider.NopPayloadSigner{}, nil
	}
	signer, err := provider.SignerFromEnv()
	if err != nil {
		return nil, err
	}
	if _, unsigned := signer.(provider.NopPayloadSigner); unsigned {
		return nil, oops.Code(provider.CodeSignerConfig).
			With("env", "WAYGATE_U8_SIGNING_KEY").
			Errorf("sign_requests is enabled but WAYGATE_U8_SIGNING_KEY is not set")
	}
	return signer, nil
}
