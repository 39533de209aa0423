package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig is the complete daemon configuration.
// Values are layered: built-in defaults, then an optional config file, then DNS_* environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log       LoggingConfig   `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Cache     CacheConfig     `koanf:"cache"`
	Blocklist BlocklistConfig `koanf:"blocklist"`
	Admin     AdminConfig     `koanf:"admin"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ServerConfig describes the inbound UDP listener.
type ServerConfig struct {
	// Address is the IP to bind; empty binds all interfaces.
	Address string `koanf:"address" validate:"omitempty,ip"`
	Port    int    `koanf:"port" validate:"required,gte=1,lte=65535"`
	// RateLimit caps accepted datagrams per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`
}

// UpstreamConfig lists the resolvers that cache misses are forwarded to.
type UpstreamConfig struct {
	// Servers is a list of upstream DNS servers in ip:port format.
	Servers  []string      `koanf:"servers" validate:"required,min=1,dive,ip_port"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Parallel bool          `koanf:"parallel"`
}

type CacheConfig struct {
	// Size is the maximum number of cached answers.
	Size int `koanf:"size" validate:"required,gte=1"`
	// Disabled removes the answer cache entirely; every query goes upstream.
	Disabled bool `koanf:"disabled"`
}

// BlocklistConfig configures the optional domain blocklist.
// The blocklist is active when at least one list file is configured.
type BlocklistConfig struct {
	Plain     []string `koanf:"plain" validate:"dive,required"`
	Hosts     []string `koanf:"hosts" validate:"dive,required"`
	DB        string   `koanf:"db" validate:"required"`
	Strategy  string   `koanf:"strategy" validate:"required,oneof=refused nxdomain"`
	CacheSize int      `koanf:"cache_size" validate:"gte=0"`
	FPRate    float64  `koanf:"fp_rate" validate:"gt=0,lt=1"`
}

// Enabled reports whether any list file is configured.
func (b BlocklistConfig) Enabled() bool {
	return len(b.Plain) > 0 || len(b.Hosts) > 0
}

// AdminConfig configures the HTTP admin surface.
type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address" validate:"required,hostname_port"`
}

// ListenAddr returns the UDP listen address in host:port form.
func (c *AppConfig) ListenAddr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// DEFAULT_APP_CONFIG holds the built-in defaults: listen on :8053, forward to 8.8.8.8:53.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Server: ServerConfig{
		Address:   "",
		Port:      8053,
		RateLimit: 0,
		RateBurst: 0,
	},
	Upstream: UpstreamConfig{
		Servers:  []string{"8.8.8.8:53"},
		Timeout:  5 * time.Second,
		Parallel: false,
	},
	Cache: CacheConfig{
		Size:     10000,
		Disabled: false,
	},
	Blocklist: BlocklistConfig{
		Plain:     []string{},
		Hosts:     []string{},
		DB:        "/var/lib/cachedns/blocklist.db",
		Strategy:  "refused",
		CacheSize: 1000,
		FPRate:    0.01,
	},
	Admin: AdminConfig{
		Enabled: false,
		Address: "127.0.0.1:8080",
	},
}

// envKeys maps the DNS_-stripped environment variable names onto koanf paths.
// Variables not listed here are ignored.
var envKeys = map[string]string{
	"ENV":                  "env",
	"LOG_LEVEL":            "log.level",
	"SERVER_ADDRESS":       "server.address",
	"SERVER_PORT":          "server.port",
	"SERVER_RATE_LIMIT":    "server.rate_limit",
	"SERVER_RATE_BURST":    "server.rate_burst",
	"UPSTREAM_SERVERS":     "upstream.servers",
	"UPSTREAM_TIMEOUT":     "upstream.timeout",
	"UPSTREAM_PARALLEL":    "upstream.parallel",
	"CACHE_SIZE":           "cache.size",
	"CACHE_DISABLED":       "cache.disabled",
	"BLOCKLIST_PLAIN":      "blocklist.plain",
	"BLOCKLIST_HOSTS":      "blocklist.hosts",
	"BLOCKLIST_DB":         "blocklist.db",
	"BLOCKLIST_STRATEGY":   "blocklist.strategy",
	"BLOCKLIST_CACHE_SIZE": "blocklist.cache_size",
	"BLOCKLIST_FP_RATE":    "blocklist.fp_rate",
	"ADMIN_ENABLED":        "admin.enabled",
	"ADMIN_ADDRESS":        "admin.address",
}

// listKeys are the paths whose values are always lists, even with a single element.
var listKeys = map[string]bool{
	"upstream.servers": true,
	"blocklist.plain":  true,
	"blocklist.hosts":  true,
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be in the format "IP:Port"; IPv6 addresses must be bracketed.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// transformEnv maps one DNS_* variable onto its koanf path, splitting list values on spaces or commas.
func transformEnv(key, value string) (string, any) {
	path, ok := envKeys[strings.ToUpper(strings.TrimPrefix(key, "DNS_"))]
	if !ok {
		return "", nil
	}
	value = strings.TrimSpace(value)

	if listKeys[path] || strings.ContainsAny(value, " ,") {
		parts := strings.FieldsFunc(value, func(r rune) bool {
			return r == ' ' || r == ','
		})
		return path, parts
	}
	return path, value
}

// envLoader loads environment variables with the prefix "DNS_".
// It is a package variable so tests can replace it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix:        "DNS_",
		TransformFunc: transformEnv,
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads a YAML, JSON or TOML config file, chosen by extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers the custom "ip_port" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load builds the configuration from defaults, the optional file at path, and the environment,
// then validates it. An empty path skips the file layer.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
