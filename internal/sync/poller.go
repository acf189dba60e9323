package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source/email"
	"github.com/nhle/mailissue/internal/store"
)

// PollState represents the current state of the mailbox poller.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

func (s PollState) String() string {
	switch s {
	case PollRunning:
		return "running"
	case PollError:
		return "error"
	default:
		return "idle"
	}
}

// PollStatus holds the state of the last poll.
type PollStatus struct {
	State    PollState
	LastPoll time.Time
	Error    error
}

// Result is sent after every poll. Messages holds the envelopes seen for
// the first time that no issue was created from yet.
type Result struct {
	Messages []email.Envelope
	Error    error
	At       time.Time
}

// Mailbox lists the recent messages of an IMAP mailbox.
type Mailbox interface {
	FetchEnvelopes(ctx context.Context, mailbox string, since time.Duration, limit int) ([]email.Envelope, error)
}

// LinkLookup finds the issue created from a message.
type LinkLookup interface {
	LatestLinkForMessage(ctx context.Context, messageID string) (*model.IssueLink, error)
}

// Options configures a Poller.
type Options struct {
	Mailbox  string
	Interval time.Duration
	Since    time.Duration
	Limit    int
	Logger   logr.Logger
	Now      func() time.Time
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

const defaultInterval = 120 * time.Second

// Poller watches a mailbox for messages that have not been turned into
// issues yet.
type Poller struct {
	mbox  Mailbox
	links LinkLookup
	opts  Options

	resultCh  chan Result
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	seen    map[string]bool
	status  PollStatus
	running bool
}

// New creates a Poller reading mbox and checking links against links.
func New(mbox Mailbox, links LinkLookup, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Poller{
		mbox:      mbox,
		links:     links,
		opts:      opts,
		resultCh:  make(chan Result, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		seen:      make(map[string]bool),
	}
}

// Start begins polling and returns the result channel. The channel is
// closed when ctx is done or Stop is called. Start returns nil if the
// poller is already running.
func (p *Poller) Start(ctx context.Context) <-chan Result {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop(ctx)
	return p.resultCh
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the last poll.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.resultCh)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.send(ctx, p.Poll(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.send(ctx, p.Poll(ctx))
		case <-p.triggerCh:
			p.send(ctx, p.Poll(ctx))
		}
	}
}

// Poll fetches the mailbox once and returns the new, unlinked messages.
// A message is reported at most once per Poller.
func (p *Poller) Poll(ctx context.Context) Result {
	p.setStatus(PollRunning, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	envelopes, err := p.mbox.FetchEnvelopes(fetchCtx, p.opts.Mailbox, p.opts.Since, p.opts.Limit)
	if err != nil {
		err = fmt.Errorf("polling %s: %w", p.opts.Mailbox, err)
		p.setStatus(PollError, err)
		p.opts.Logger.Error(err, "poll failed")
		return Result{Error: err, At: p.opts.Now()}
	}

	var fresh []email.Envelope
	for _, env := range envelopes {
		key := envelopeKey(env)
		p.mu.Lock()
		seen := p.seen[key]
		p.seen[key] = true
		p.mu.Unlock()
		if seen {
			continue
		}

		if env.MessageID != "" {
			_, err := p.links.LatestLinkForMessage(fetchCtx, env.MessageID)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				p.opts.Logger.Error(err, "looking up message link", "message", env.MessageID)
			}
		}
		fresh = append(fresh, env)
	}

	p.setStatus(PollIdle, nil)
	p.opts.Logger.V(1).Info("polled mailbox", "mailbox", p.opts.Mailbox,
		"messages", len(envelopes), "new", len(fresh))
	return Result{Messages: fresh, At: p.opts.Now()}
}

// envelopeKey identifies a message across polls; messages without a
// Message-ID fall back to their UID.
func envelopeKey(env email.Envelope) string {
	if env.MessageID != "" {
		return "id:" + env.MessageID
	}
	return fmt.Sprintf("uid:%d", env.UID)
}

func (p *Poller) setStatus(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == PollIdle {
		p.status.LastPoll = p.opts.Now()
	}
}

// send delivers r unless the poller is shutting down.
func (p *Poller) send(ctx context.Context, r Result) {
	select {
	case p.resultCh <- r:
	case <-ctx.Done():
	case <-p.stopCh:
	}
}
