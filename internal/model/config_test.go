package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://", cfg.Redmine.URL)
	assert.Equal(t, 30, cfg.Redmine.TimeoutSec)
	assert.Equal(t, 7, cfg.Defaults.Due)
	assert.Equal(t, DefaultSubjectPattern, cfg.Defaults.Subject)
	assert.Equal(t, DefaultHeaders, cfg.Defaults.DescriptionHeaders)
	assert.True(t, cfg.Defaults.UploadAttachments)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.NotNil(t, cfg.Directories)
	for _, k := range VisibilityKeys {
		assert.True(t, cfg.Visible(k), k)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`redmine:
  url: https://file.example.com
target_project: 4
directories:
  support: 9
field_visibility:
  watcher: false
`), 0o644))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MAILISSUE_TARGET_STATUS=2\n"), 0o644))
	t.Setenv("MAILISSUE_REDMINE_URL", "https://env.example.com")
	t.Cleanup(func() { os.Unsetenv("MAILISSUE_TARGET_STATUS") })

	cfg, err := LoadConfig(path, envFile, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Redmine.URL)
	assert.Equal(t, 4, cfg.TargetProject)
	assert.Equal(t, 2, cfg.TargetStatus)
	assert.Equal(t, 9, cfg.Directories["support"])
	assert.False(t, cfg.Visible("watcher"))
	assert.True(t, cfg.Visible("notes"))
	assert.True(t, cfg.Visible("unknown"))

	m := cfg.Mapping()
	assert.Equal(t, 4, m.TargetProject)
	assert.Equal(t, 7, m.DueDays)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redmine: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Redmine.URL = "https://redmine.example.com"
	cfg.Redmine.Account = "alice"
	cfg.TargetProject = 3
	cfg.Directories = map[string]int{"ops": 1}

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://redmine.example.com", got.Redmine.URL)
	assert.Equal(t, "alice", got.Redmine.Account)
	assert.Equal(t, 3, got.TargetProject)
	assert.Equal(t, 1, got.Directories["ops"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *AppConfig)
		problems []string
	}{
		{
			name:   "valid",
			mutate: func(c *AppConfig) { c.Redmine.URL = "https://redmine.example.com" },
		},
		{
			name:     "default url has no host",
			mutate:   func(c *AppConfig) {},
			problems: []string{"redmine.url must have a host"},
		},
		{
			name: "several problems",
			mutate: func(c *AppConfig) {
				c.Redmine.URL = "ftp://redmine.example.com"
				c.Defaults.Due = -1
				c.Defaults.Subject = "(re:"
				c.Logging.Level = "trace"
				c.Logging.Format = "xml"
			},
			problems: []string{
				"redmine.url must use http or https",
				"defaults.due must be non-negative",
				"defaults.subject is not a valid pattern",
				"logging.level must be one of",
				"logging.format must be one of",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.problems) == 0 {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Len(t, cfgErr.Problems, len(tt.problems))
			for _, p := range tt.problems {
				assert.Contains(t, err.Error(), p)
			}
		})
	}
}
