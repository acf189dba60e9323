// Package cli is the mailissue command line: it turns a mail message
// into a Redmine issue through the issue editor.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/credential"
	"github.com/nhle/mailissue/internal/logging"
	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source"
	"github.com/nhle/mailissue/internal/source/email"
	"github.com/nhle/mailissue/internal/source/redmine"
	"github.com/nhle/mailissue/internal/store"
)

// BuildInfo contains build-time information
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Tracker is the remote tracker as used by the commands.
type Tracker interface {
	source.Tracker
	ValidateConnection(ctx context.Context) (*redmine.CurrentUser, error)
}

// Mailbox reads messages from an IMAP account.
type Mailbox interface {
	FetchEnvelopes(ctx context.Context, mailbox string, since time.Duration, limit int) ([]email.Envelope, error)
	FetchMessage(ctx context.Context, mailbox string, uid uint32) (*email.Message, error)
}

// Deps are the collaborators the commands are built from.
type Deps struct {
	NewTracker func(cfg *model.AppConfig, apiKey string, log logr.Logger, reg prometheus.Registerer) Tracker
	OpenStore  func(path string) (store.Store, error)
	OpenKeys   func() (*credential.Keys, error)
	NewMailbox func(cfg model.IMAPConfig) Mailbox
	Now        func() time.Time

	// Debounce is the editor's edit quiescence window.
	Debounce time.Duration
}

// DefaultDeps returns the production collaborators.
func DefaultDeps() Deps {
	return Deps{
		NewTracker: func(cfg *model.AppConfig, apiKey string, log logr.Logger, reg prometheus.Registerer) Tracker {
			return redmine.NewAdapter(cfg.Redmine.URL, apiKey,
				redmine.WithTimeout(time.Duration(cfg.Redmine.TimeoutSec)*time.Second),
				redmine.WithMetrics(redmine.NewMetrics(reg)),
				redmine.WithLogger(log.WithName("redmine")),
			)
		},
		OpenStore: func(path string) (store.Store, error) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
			return store.NewSQLiteStore(path)
		},
		OpenKeys: func() (*credential.Keys, error) {
			return credential.Open(filepath.Dir(model.DefaultConfigPath()))
		},
		NewMailbox: func(cfg model.IMAPConfig) Mailbox {
			return email.NewIMAPClient(cfg)
		},
		Now: time.Now,
	}
}

// app holds the state shared by the commands of one invocation.
type app struct {
	deps Deps

	configPath   string
	envFiles     []string
	logLevel     string
	logFormat    string
	printMetrics bool

	cfg *model.AppConfig
	log logr.Logger
	reg *prometheus.Registry
}

// Execute builds the command tree with the production dependencies and
// runs it.
func Execute(info BuildInfo) error {
	root := NewRootCommand(DefaultDeps())
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
	return root.Execute()
}

// NewRootCommand returns the mailissue command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	a := &app{deps: deps, log: logr.Discard()}

	root := &cobra.Command{
		Use:   "mailissue",
		Short: "Create Redmine issues from mail messages",
		Long: `mailissue turns a mail message into a Redmine issue.

The message subject, body, headers and attachments are mapped to an issue
draft according to the configuration. Flags and the interactive form edit
the draft before it is submitted; issues referenced as #N in the message
can be linked as relations.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", model.DefaultConfigPath(), "Configuration file")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "Environment files loaded before the configuration")
	flags.StringVarP(&a.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error); overrides the configuration")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (text, json); overrides the configuration")
	flags.BoolVar(&a.printMetrics, "metrics", false, "Print Redmine client metrics to stderr on exit")

	root.AddCommand(
		newCreateCmd(a),
		newUpdateCmd(a),
		newFetchCmd(a),
		newWatchCmd(a),
		newLinksCmd(a),
		newLoginCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := model.LoadConfig(a.configPath, a.envFiles...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.reg = prometheus.NewRegistry()

	level, format := cfg.Logging.Level, cfg.Logging.Format
	if a.logLevel != "" {
		level = a.logLevel
	}
	if a.logFormat != "" {
		format = a.logFormat
	}
	if !cfg.Logging.Enabled && a.logLevel == "" {
		return nil
	}

	log, err := logging.New(level, format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = log.WithName("mailissue")
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if !a.printMetrics || a.reg == nil {
		return nil
	}
	return writeMetrics(cmd.ErrOrStderr(), a.reg)
}

func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// tracker connects to the configured Redmine instance. A key in the
// configuration wins over the keyring.
func (a *app) tracker() (Tracker, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	key := a.cfg.Redmine.APIKey
	if key == "" {
		keys, err := a.deps.OpenKeys()
		if err != nil {
			return nil, err
		}
		key, err = keys.APIKey(a.cfg.Redmine.URL)
		if err != nil {
			return nil, fmt.Errorf("%w for %s; run mailissue login", err, a.cfg.Redmine.URL)
		}
	}
	return a.deps.NewTracker(a.cfg, key, a.log, a.reg), nil
}

// store opens the link store. The path comes from the configuration.
func (a *app) store() (store.Store, error) {
	path := a.cfg.DatabasePath
	if path == "" {
		path = model.DefaultDatabasePath()
	}
	return a.deps.OpenStore(path)
}
