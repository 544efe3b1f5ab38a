package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lucashicks1/cssebot/cmd/internal/discord"
	"github.com/lucashicks1/cssebot/cmd/internal/pgschema"
	"github.com/lucashicks1/cssebot/cmd/internal/setup"
)

// Config contains all runtime configuration loaded from environment variables and the optional file.
type Config struct {
	HTTPAddr string
	LogLevel string
	// LogFormat is "json" or "pretty".
	LogFormat string
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool
	// /readyz returns 503 until the gateway session is ready.
	ReadinessRequireGateway bool

	DiscordAppID     string
	DiscordPublicKey string
	DiscordToken     string
	DiscordAPIBase   string
	GatewayEnabled   bool
	SyncOnStart      bool
	CommandGuilds    []string

	GitHubToken string
	GitHubOrg   string

	CacheTTL      time.Duration
	WizardTimeout time.Duration
	SweepInterval time.Duration
	Cooldown      time.Duration

	StudentRole string
	TutorRoles  []string
	TeamPrefix  string
	NumStudios  int

	ConfigFile string
}

// LoadConfig loads Config from environment variables with defaults. Bad values fall back to defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("CSSEBOT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("CSSEBOT_LOG_LEVEL", "info"),
		LogFormat: EnvString("CSSEBOT_LOG_FORMAT", "json"),
		LogColor:  EnvBool("CSSEBOT_LOG_COLOR", false),

		ReadHeaderTimeout: EnvDuration("CSSEBOT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CSSEBOT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CSSEBOT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CSSEBOT_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("CSSEBOT_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CSSEBOT_DATABASE_URL", ""),
		DBSchema:    EnvString("CSSEBOT_DB_SCHEMA", pgschema.DefaultSchema),
		DBMaxConns:  EnvInt32("CSSEBOT_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CSSEBOT_DB_MIN_CONNS", 0),

		ReadinessRequireDB:      EnvBool("CSSEBOT_READINESS_REQUIRE_DB", false),
		ReadinessRequireGateway: EnvBool("CSSEBOT_READINESS_REQUIRE_GATEWAY", false),

		DiscordAppID:     EnvString("CSSEBOT_DISCORD_APP_ID", ""),
		DiscordPublicKey: EnvString("CSSEBOT_DISCORD_PUBLIC_KEY", ""),
		DiscordToken:     EnvString("CSSEBOT_DISCORD_TOKEN", ""),
		DiscordAPIBase:   EnvString("CSSEBOT_DISCORD_API_BASE", ""),
		GatewayEnabled:   EnvBool("CSSEBOT_GATEWAY_ENABLED", true),
		SyncOnStart:      EnvBool("CSSEBOT_SYNC_COMMANDS_ON_START", false),
		CommandGuilds:    EnvList("CSSEBOT_COMMAND_GUILDS", nil),

		GitHubToken: EnvString("CSSEBOT_GITHUB_TOKEN", ""),
		GitHubOrg:   EnvString("CSSEBOT_GITHUB_ORG", "UQcsse3200"),

		CacheTTL:      EnvDuration("CSSEBOT_CACHE_TTL", time.Hour),
		WizardTimeout: EnvDuration("CSSEBOT_WIZARD_TIMEOUT", 600*time.Second),
		SweepInterval: EnvDuration("CSSEBOT_SWEEP_INTERVAL", time.Minute),
		Cooldown:      EnvDuration("CSSEBOT_COMMAND_COOLDOWN", 5*time.Second),

		StudentRole: "Student",
		TutorRoles:  []string{"Tutor", "Course Staff"},
		TeamPrefix:  "Team ",
		NumStudios:  setup.DefaultNumStudios,

		ConfigFile: EnvString("CSSEBOT_CONFIG_FILE", ""),
	}
}

// fileConfig is the YAML overlay. Unset fields keep the environment value.
type fileConfig struct {
	Course struct {
		StudentRole string   `yaml:"student_role"`
		TutorRoles  []string `yaml:"tutor_roles"`
		TeamPrefix  string   `yaml:"team_prefix"`
		NumStudios  int      `yaml:"num_studios"`
	} `yaml:"course"`
	GitHub struct {
		Org string `yaml:"org"`
	} `yaml:"github"`
	Discord struct {
		CommandGuilds []string `yaml:"command_guilds"`
	} `yaml:"discord"`
}

// ApplyFile overlays the YAML file at cfg.ConfigFile onto cfg. An empty path is a no-op.
func ApplyFile(cfg Config) (Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", cfg.ConfigFile, err)
	}

	if fc.Course.StudentRole != "" {
		cfg.StudentRole = fc.Course.StudentRole
	}
	if len(fc.Course.TutorRoles) > 0 {
		cfg.TutorRoles = fc.Course.TutorRoles
	}
	if fc.Course.TeamPrefix != "" {
		cfg.TeamPrefix = fc.Course.TeamPrefix
	}
	if fc.Course.NumStudios != 0 {
		cfg.NumStudios = fc.Course.NumStudios
	}
	if fc.GitHub.Org != "" {
		cfg.GitHubOrg = fc.GitHub.Org
	}
	if len(fc.Discord.CommandGuilds) > 0 {
		cfg.CommandGuilds = fc.Discord.CommandGuilds
	}
	return cfg, nil
}

// Validate enforces the settings the bot cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DiscordAppID) == "" {
		errs = append(errs, errors.New("CSSEBOT_DISCORD_APP_ID is required"))
	}
	if strings.TrimSpace(c.DiscordToken) == "" {
		errs = append(errs, errors.New("CSSEBOT_DISCORD_TOKEN is required"))
	}
	if _, err := discord.ParsePublicKey(c.DiscordPublicKey); err != nil {
		errs = append(errs, fmt.Errorf("CSSEBOT_DISCORD_PUBLIC_KEY: %w", err))
	}
	if !pgschema.ValidIdent(c.DBSchema) {
		errs = append(errs, fmt.Errorf("CSSEBOT_DB_SCHEMA: %w", pgschema.ErrInvalidSchema))
	}
	switch c.LogFormat {
	case "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("CSSEBOT_LOG_FORMAT must be json or pretty, got %q", c.LogFormat))
	}
	if strings.TrimSpace(c.StudentRole) == "" || strings.TrimSpace(c.TeamPrefix) == "" {
		errs = append(errs, errors.New("course student_role and team_prefix must be set"))
	}
	if c.NumStudios < 1 || c.NumStudios > 25 {
		errs = append(errs, fmt.Errorf("course num_studios must be 1..25, got %d", c.NumStudios))
	}
	return errors.Join(errs...)
}
