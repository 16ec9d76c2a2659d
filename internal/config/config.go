package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/plcbridge/internal/protocol/session"
)

var ErrNoSchemaFields = errors.New("config: schema has no fields")

// Config is the whole bridge configuration: both session roles, the admin
// endpoint, and the record layout they exchange.
type Config struct {
	Client ClientConfig
	Server ServerConfig
	Admin  AdminConfig
	Schema SchemaConfig
}

// ClientConfig is the client session plus the loop collaborators that wrap it.
type ClientConfig struct {
	Session        session.ClientConfig
	RateHz         float64
	Watchdog       time.Duration
	AlertThreshold int
	LogEntries     int
	LogFile        string
}

type ServerConfig struct {
	Session session.ServerConfig
	Handler string
}

// AdminConfig enables the HTTP admin endpoint when Listen is set.
type AdminConfig struct {
	Listen string
}

type SchemaConfig struct {
	ByteOrder string
	Fields    []FieldConfig
}

// FieldConfig is one [[schema.fields]] entry. Type accepts IEC names and struct
// format codes; Default may be omitted.
type FieldConfig struct {
	Name    string `toml:"name"`
	Type    string `toml:"type"`
	Default any    `toml:"default"`
}

type fileConfig struct {
	Client struct {
		Address            string  `toml:"address"`
		MaxConnectAttempts int     `toml:"max_connect_attempts"`
		AutoReconnect      bool    `toml:"auto_reconnect"`
		ConnectTimeout     string  `toml:"connect_timeout"`
		ReadTimeout        string  `toml:"read_timeout"`
		WriteTimeout       string  `toml:"write_timeout"`
		RateHz             float64 `toml:"rate_hz"`
		Watchdog           string  `toml:"watchdog"`
		AlertThreshold     int     `toml:"alert_threshold"`
		LogEntries         int     `toml:"log_entries"`
		LogFile            string  `toml:"log_file"`
		Backoff            struct {
			Initial    string  `toml:"initial"`
			Multiplier float64 `toml:"multiplier"`
			Max        string  `toml:"max"`
			Jitter     bool    `toml:"jitter"`
		} `toml:"backoff"`
	} `toml:"client"`
	Server struct {
		Listen       string `toml:"listen"`
		MaxConns     int    `toml:"max_conns"`
		IdleTimeout  string `toml:"idle_timeout"`
		WriteTimeout string `toml:"write_timeout"`
		Handler      string `toml:"handler"`
	} `toml:"server"`
	Admin struct {
		Listen string `toml:"listen"`
	} `toml:"admin"`
	Schema struct {
		ByteOrder string        `toml:"byte_order"`
		Fields    []FieldConfig `toml:"fields"`
	} `toml:"schema"`
}

func Default() Config {
	return Config{
		Client: ClientConfig{
			Session:        session.DefaultClientConfig(),
			RateHz:         10,
			Watchdog:       2 * time.Second,
			AlertThreshold: 5,
			LogEntries:     1000,
		},
		Server: ServerConfig{
			Session: session.DefaultServerConfig(),
			Handler: "process",
		},
		Schema: SchemaConfig{
			ByteOrder: "big",
			Fields: []FieldConfig{
				{Name: "motor_speed", Type: "UDINT", Default: int64(0)},
				{Name: "temperature", Type: "REAL", Default: 0.0},
				{Name: "status", Type: "UINT", Default: int64(0)},
				{Name: "enabled", Type: "BOOL", Default: false},
			},
		},
	}
}

// Load reads a TOML file over Default. Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	client := &cfg.Client
	if meta.IsDefined("client", "address") {
		client.Session.Address = strings.TrimSpace(raw.Client.Address)
	}
	if meta.IsDefined("client", "max_connect_attempts") {
		client.Session.MaxConnectAttempts = raw.Client.MaxConnectAttempts
	}
	if meta.IsDefined("client", "auto_reconnect") {
		client.Session.AutoReconnect = raw.Client.AutoReconnect
	}
	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"client", "connect_timeout"}, raw.Client.ConnectTimeout, &client.Session.Session.ConnectTimeout},
		{[]string{"client", "read_timeout"}, raw.Client.ReadTimeout, &client.Session.Session.ReadTimeout},
		{[]string{"client", "write_timeout"}, raw.Client.WriteTimeout, &client.Session.Session.WriteTimeout},
		{[]string{"client", "watchdog"}, raw.Client.Watchdog, &client.Watchdog},
		{[]string{"client", "backoff", "initial"}, raw.Client.Backoff.Initial, &client.Session.Session.Backoff.InitialDelay},
		{[]string{"client", "backoff", "max"}, raw.Client.Backoff.Max, &client.Session.Session.Backoff.MaxDelay},
		{[]string{"server", "idle_timeout"}, raw.Server.IdleTimeout, &cfg.Server.Session.IdleTimeout},
		{[]string{"server", "write_timeout"}, raw.Server.WriteTimeout, &cfg.Server.Session.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}
	if meta.IsDefined("client", "backoff", "multiplier") {
		client.Session.Session.Backoff.Multiplier = raw.Client.Backoff.Multiplier
	}
	if meta.IsDefined("client", "backoff", "jitter") {
		client.Session.Session.Backoff.Jitter = raw.Client.Backoff.Jitter
	}
	if meta.IsDefined("client", "rate_hz") {
		client.RateHz = raw.Client.RateHz
	}
	if meta.IsDefined("client", "alert_threshold") {
		client.AlertThreshold = raw.Client.AlertThreshold
	}
	if meta.IsDefined("client", "log_entries") {
		client.LogEntries = raw.Client.LogEntries
	}
	if meta.IsDefined("client", "log_file") {
		client.LogFile = strings.TrimSpace(raw.Client.LogFile)
	}

	if meta.IsDefined("server", "listen") {
		cfg.Server.Session.ListenAddr = strings.TrimSpace(raw.Server.Listen)
	}
	if meta.IsDefined("server", "max_conns") {
		cfg.Server.Session.MaxConns = raw.Server.MaxConns
	}
	if meta.IsDefined("server", "handler") {
		cfg.Server.Handler = strings.ToLower(strings.TrimSpace(raw.Server.Handler))
	}

	if meta.IsDefined("admin", "listen") {
		cfg.Admin.Listen = strings.TrimSpace(raw.Admin.Listen)
	}

	if meta.IsDefined("schema", "byte_order") {
		cfg.Schema.ByteOrder = strings.TrimSpace(raw.Schema.ByteOrder)
	}
	if meta.IsDefined("schema", "fields") {
		cfg.Schema.Fields = raw.Schema.Fields
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Client.Session.Address) == "" {
		return fmt.Errorf("config: client address required")
	}
	if strings.TrimSpace(cfg.Server.Session.ListenAddr) == "" {
		return fmt.Errorf("config: server listen address required")
	}
	if cfg.Client.RateHz < 0 {
		return fmt.Errorf("config: client rate_hz must not be negative")
	}
	switch cfg.Server.Handler {
	case "echo", "process":
	default:
		return fmt.Errorf("config: unknown server handler %q", cfg.Server.Handler)
	}
	if _, err := BuildSchema(cfg.Schema); err != nil && !errors.Is(err, ErrNoSchemaFields) {
		return err
	}
	return nil
}
