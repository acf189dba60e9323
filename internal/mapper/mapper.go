// Package mapper derives an issue draft from a mail message.
package mapper

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/nhle/mailissue/internal/crossref"
	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source/email"
)

// DateLayout is the date format used by the tracker.
const DateLayout = "2006-01-02"

// TextExtractor converts a message body to plain text.
type TextExtractor interface {
	PlainText(msg *email.Message) (string, error)
}

// Mapper maps messages to drafts with a fixed configuration.
type Mapper struct {
	cfg     model.MappingConfig
	ext     TextExtractor
	subject *regexp.Regexp
	now     func() time.Time
	log     logr.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithClock sets the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(m *Mapper) { m.log = log }
}

// New creates a Mapper. An invalid subject pattern is logged once and
// leaves subjects unchanged.
func New(cfg model.MappingConfig, ext TextExtractor, opts ...Option) *Mapper {
	m := &Mapper{
		cfg: cfg,
		ext: ext,
		now: time.Now,
		log: logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.SubjectPattern != "" {
		re, err := regexp.Compile("(?i)" + cfg.SubjectPattern)
		if err != nil {
			m.log.Error(err, "invalid subject pattern", "pattern", cfg.SubjectPattern)
		} else {
			m.subject = re
		}
	}
	return m
}

// ToDraftFields maps msg with cfg and ext using the current time.
func ToDraftFields(msg *email.Message, cfg model.MappingConfig, ext TextExtractor) model.Draft {
	return New(cfg, ext).ToDraftFields(msg)
}

// ToDraftFields derives a draft from msg. It never fails: a body that
// cannot be extracted yields an empty description.
func (m *Mapper) ToDraftFields(msg *email.Message) model.Draft {
	d := model.Draft{
		Subject: m.StripSubject(msg.Subject),
	}

	if id, ok := m.cfg.Directories[msg.Folder]; ok && msg.Folder != "" && id > 0 {
		d.ProjectID = model.IntPtr(id)
	} else if m.cfg.TargetProject > 0 {
		d.ProjectID = model.IntPtr(m.cfg.TargetProject)
	}
	if m.cfg.DefaultTracker > 0 {
		d.TrackerID = model.IntPtr(m.cfg.DefaultTracker)
	}
	if m.cfg.TargetStatus > 0 {
		d.StatusID = model.IntPtr(m.cfg.TargetStatus)
	}

	var body string
	if m.cfg.Description || m.cfg.NotesHeader {
		body = m.plainText(msg)
	}

	if m.cfg.DescriptionHeader {
		d.Description = HeaderBlock(msg, m.cfg.DescriptionHeaders)
	}
	if m.cfg.Description {
		d.Description += body
	}
	if m.cfg.NotesHeader {
		d.Notes = HeaderBlock(msg, m.cfg.NotesHeaders) + body
	}

	today := m.now()
	d.StartDate = FormatDate(today, 0)
	d.DueDate = FormatDate(today, m.cfg.DueDays)

	if m.cfg.UploadAttachments {
		for _, a := range msg.Attachments {
			d.Files = append(d.Files, model.Upload{
				Filename:    a.Filename,
				ContentType: a.ContentType,
				Data:        a.Data,
			})
		}
	}

	return d
}

// ReferencedIssues returns the ids of issues referenced as #N in the
// subject or body of msg.
func (m *Mapper) ReferencedIssues(msg *email.Message) []int {
	return crossref.MatchReferences(msg.Subject, m.plainText(msg), nil)
}

// StripSubject removes every match of the subject pattern.
func (m *Mapper) StripSubject(subject string) string {
	if m.subject == nil {
		return subject
	}
	return m.subject.ReplaceAllString(subject, "")
}

func (m *Mapper) plainText(msg *email.Message) string {
	if m.ext == nil {
		return ""
	}
	text, err := m.ext.PlainText(msg)
	if err != nil {
		m.log.V(1).Info("body extraction failed", "messageID", msg.MessageID, "error", err.Error())
		return ""
	}
	return text
}

// HeaderBlock renders "Name: value" lines for the named headers that
// are present on msg, in the given order.
func HeaderBlock(msg *email.Message, names []string) string {
	var b strings.Builder
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		value, ok := msg.Header(name)
		if !ok {
			continue
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatDate formats base shifted by deltaDays as YYYY-MM-DD in base's
// location.
func FormatDate(base time.Time, deltaDays int) string {
	return base.AddDate(0, 0, deltaDays).Format(DateLayout)
}
