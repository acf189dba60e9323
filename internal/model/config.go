package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultHeaders is the header list used for description and notes
// header blocks when none is configured.
var DefaultHeaders = []string{
	"Subject", "From", "Resent-From", "Date", "To", "Cc", "Newsgroups",
}

// DefaultSubjectPattern strips reply and forward prefixes.
const DefaultSubjectPattern = `((fwd:)|(re:))\s?`

// envPrefix namespaces environment overrides, e.g. MAILISSUE_REDMINE_URL.
const envPrefix = "MAILISSUE"

// Visibility keys for per-field visibility toggles.
var VisibilityKeys = []string{
	"project", "tracker", "subject", "description", "status", "assigned",
	"watcher", "version", "period", "file", "other", "issue", "notes",
}

// RedmineConfig holds the remote tracker connection settings.
type RedmineConfig struct {
	// URL is the root URL of the Redmine instance.
	URL string `mapstructure:"url" yaml:"url"`

	// APIKey authenticates requests. When empty the key is read from
	// the system keyring.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// Account is the login the key belongs to, used for display only.
	Account string `mapstructure:"account" yaml:"account,omitempty"`

	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// IMAPConfig holds the mailbox settings used by the fetch command.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// DefaultsConfig controls how a message is mapped to a draft.
type DefaultsConfig struct {
	Tracker            int      `mapstructure:"tracker" yaml:"tracker"`
	Due                int      `mapstructure:"due" yaml:"due"`
	Subject            string   `mapstructure:"subject" yaml:"subject"`
	Description        bool     `mapstructure:"description" yaml:"description"`
	DescriptionHeader  bool     `mapstructure:"description_header" yaml:"description_header"`
	DescriptionHeaders []string `mapstructure:"description_headers" yaml:"description_headers"`
	NotesHeader        bool     `mapstructure:"notes_header" yaml:"notes_header"`
	NotesHeaders       []string `mapstructure:"notes_headers" yaml:"notes_headers"`
	UploadAttachments  bool     `mapstructure:"upload_attachments" yaml:"upload_attachments"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Redmine  RedmineConfig  `mapstructure:"redmine" yaml:"redmine"`
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// TargetProject and TargetStatus preselect project and status.
	TargetProject int `mapstructure:"target_project" yaml:"target_project"`
	TargetStatus  int `mapstructure:"target_status" yaml:"target_status"`

	// Directories maps a mail folder to the project used for its messages.
	Directories map[string]int `mapstructure:"directories" yaml:"directories"`

	// FieldVisibility toggles the display of form sections.
	FieldVisibility map[string]bool `mapstructure:"field_visibility" yaml:"field_visibility"`

	// CustomFields is the JSON output of /custom_fields.json, either an
	// array or an object with a custom_fields member.
	CustomFields string `mapstructure:"custom_fields" yaml:"custom_fields"`

	// CustomFieldsRemote fetches definitions from the server when no
	// definitions are configured. Requires an administrator key.
	CustomFieldsRemote bool `mapstructure:"custom_fields_remote" yaml:"custom_fields_remote"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// MappingConfig is the read-only subset of configuration consumed when
// deriving a draft from a message.
type MappingConfig struct {
	SubjectPattern     string
	Description        bool
	DescriptionHeader  bool
	DescriptionHeaders []string
	NotesHeader        bool
	NotesHeaders       []string
	UploadAttachments  bool
	DueDays            int
	DefaultTracker     int
	TargetProject      int
	TargetStatus       int
	Directories        map[string]int
}

// Mapping returns the message mapping settings.
func (c *AppConfig) Mapping() MappingConfig {
	return MappingConfig{
		SubjectPattern:     c.Defaults.Subject,
		Description:        c.Defaults.Description,
		DescriptionHeader:  c.Defaults.DescriptionHeader,
		DescriptionHeaders: c.Defaults.DescriptionHeaders,
		NotesHeader:        c.Defaults.NotesHeader,
		NotesHeaders:       c.Defaults.NotesHeaders,
		UploadAttachments:  c.Defaults.UploadAttachments,
		DueDays:            c.Defaults.Due,
		DefaultTracker:     c.Defaults.Tracker,
		TargetProject:      c.TargetProject,
		TargetStatus:       c.TargetStatus,
		Directories:        c.Directories,
	}
}

// Visible reports whether the section named key should be displayed.
// Unknown keys are visible.
func (c *AppConfig) Visible(key string) bool {
	v, ok := c.FieldVisibility[key]
	return !ok || v
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailissue/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDatabasePath returns the default location of the link store.
func DefaultDatabasePath() string {
	return filepath.Join(configDir(), "links.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailissue")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	visibility := make(map[string]bool, len(VisibilityKeys))
	for _, k := range VisibilityKeys {
		visibility[k] = true
	}
	return &AppConfig{
		Redmine: RedmineConfig{
			URL:        "http://",
			TimeoutSec: 30,
		},
		IMAP: IMAPConfig{
			Port:    "993",
			TLS:     true,
			Mailbox: "INBOX",
		},
		Defaults: DefaultsConfig{
			Due:                7,
			Subject:            DefaultSubjectPattern,
			Description:        true,
			DescriptionHeader:  true,
			DescriptionHeaders: append([]string(nil), DefaultHeaders...),
			NotesHeader:        false,
			NotesHeaders:       append([]string(nil), DefaultHeaders...),
			UploadAttachments:  true,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "warn",
			Format:  "text",
		},
		Directories:     map[string]int{},
		FieldVisibility: visibility,
		CustomFields:    "[]",
		DatabasePath:    DefaultDatabasePath(),
	}
}

// setDefaults registers defaults with v so that environment overrides
// resolve for every key.
func setDefaults(v *viper.Viper, cfg *AppConfig) {
	v.SetDefault("redmine.url", cfg.Redmine.URL)
	v.SetDefault("redmine.api_key", "")
	v.SetDefault("redmine.account", "")
	v.SetDefault("redmine.timeout_sec", cfg.Redmine.TimeoutSec)
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", cfg.IMAP.Port)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.tls", cfg.IMAP.TLS)
	v.SetDefault("imap.mailbox", cfg.IMAP.Mailbox)
	v.SetDefault("defaults.tracker", 0)
	v.SetDefault("defaults.due", cfg.Defaults.Due)
	v.SetDefault("defaults.subject", cfg.Defaults.Subject)
	v.SetDefault("defaults.description", cfg.Defaults.Description)
	v.SetDefault("defaults.description_header", cfg.Defaults.DescriptionHeader)
	v.SetDefault("defaults.description_headers", cfg.Defaults.DescriptionHeaders)
	v.SetDefault("defaults.notes_header", cfg.Defaults.NotesHeader)
	v.SetDefault("defaults.notes_headers", cfg.Defaults.NotesHeaders)
	v.SetDefault("defaults.upload_attachments", cfg.Defaults.UploadAttachments)
	v.SetDefault("logging.enabled", cfg.Logging.Enabled)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("target_project", 0)
	v.SetDefault("target_status", 0)
	v.SetDefault("custom_fields", cfg.CustomFields)
	v.SetDefault("custom_fields_remote", false)
	v.SetDefault("database_path", cfg.DatabasePath)
	for _, k := range VisibilityKeys {
		v.SetDefault("field_visibility."+k, true)
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Variables from the given .env files are loaded into the environment
// first without overriding variables that are already set. If the config
// file does not exist, defaults and environment overrides apply.
func LoadConfig(path string, envFiles ...string) (*AppConfig, error) {
	var existing []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("loading env files %s: %w", strings.Join(existing, ", "), err)
		}
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Directories == nil {
		cfg.Directories = map[string]int{}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("redmine", cfg.Redmine)
	v.Set("imap", cfg.IMAP)
	v.Set("defaults", cfg.Defaults)
	v.Set("logging", cfg.Logging)
	v.Set("target_project", cfg.TargetProject)
	v.Set("target_status", cfg.TargetStatus)
	v.Set("directories", cfg.Directories)
	v.Set("field_visibility", cfg.FieldVisibility)
	v.Set("custom_fields", cfg.CustomFields)
	v.Set("custom_fields_remote", cfg.CustomFieldsRemote)
	v.Set("database_path", cfg.DatabasePath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// ConfigError lists every problem found while validating a configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// Validate checks the settings needed to talk to the tracker and map
// messages.
func (c *AppConfig) Validate() error {
	var problems []string

	u, err := url.Parse(c.Redmine.URL)
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("redmine.url is invalid: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		problems = append(problems, "redmine.url must use http or https")
	case u.Host == "":
		problems = append(problems, "redmine.url must have a host")
	}

	if c.Defaults.Due < 0 {
		problems = append(problems, "defaults.due must be non-negative")
	}
	if _, err := regexp.Compile("(?i)" + c.Defaults.Subject); err != nil {
		problems = append(problems, fmt.Sprintf("defaults.subject is not a valid pattern: %v", err))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "logging.level must be one of: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		problems = append(problems, "logging.format must be one of: text, json")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
