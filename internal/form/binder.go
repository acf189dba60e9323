package form

import (
	"sync"

	"github.com/nhle/mailissue/internal/debounce"
	"github.com/nhle/mailissue/internal/model"
)

// Binder propagates control edits into a draft after a quiescence window.
// Reads run under mu, the lock that serializes every access to the form
// and the draft.
type Binder struct {
	form   *Form
	draft  *model.Draft
	mu     sync.Locker
	deb    *debounce.Debouncer
	onRead func(key string)
}

// NewBinder creates a Binder. onRead, if non-nil, runs under mu after
// each control has been read.
func NewBinder(
	form *Form,
	draft *model.Draft,
	mu sync.Locker,
	deb *debounce.Debouncer,
	onRead func(key string),
) *Binder {
	if deb == nil {
		deb = debounce.New(debounce.DefaultDelay)
	}
	return &Binder{form: form, draft: draft, mu: mu, deb: deb, onRead: onRead}
}

// Changed schedules a read of control key. Repeated edits of the same
// control within the window collapse into a single read of the last
// value.
func (b *Binder) Changed(key string) {
	b.deb.Trigger(key, func() { b.read(key) })
}

func (b *Binder) read(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.form.ReadControl(key, b.draft); err != nil {
		return
	}
	if b.onRead != nil {
		b.onRead(key)
	}
}

// Pending reports whether a read of key is scheduled.
func (b *Binder) Pending(key string) bool {
	return b.deb.Pending(key)
}

// Cancel drops the pending read of key.
func (b *Binder) Cancel(key string) {
	b.deb.Cancel(key)
}

// Flush performs every pending read now. It takes mu and must not be
// called while holding it.
func (b *Binder) Flush() {
	b.deb.Flush()
}

// Stop discards pending reads. Later edits are no longer propagated.
func (b *Binder) Stop() {
	b.deb.Stop()
}
