package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source/email"
	"github.com/nhle/mailissue/tests/testutil"
)

type fakeMailbox struct {
	mu        gosync.Mutex
	envelopes []email.Envelope
	err       error
	calls     int
}

func (m *fakeMailbox) FetchEnvelopes(_ context.Context, _ string, _ time.Duration, _ int) ([]email.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]email.Envelope(nil), m.envelopes...), nil
}

func (m *fakeMailbox) set(envs ...email.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopes = envs
}

func TestPoll_ReportsNewUnlinkedMessagesOnce(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	_, err := st.CreateLink(ctx, model.IssueLink{MessageID: "linked@example.com", IssueID: 7})
	require.NoError(t, err)

	mbox := &fakeMailbox{}
	mbox.set(
		email.Envelope{UID: 1, MessageID: "linked@example.com"},
		email.Envelope{UID: 2, MessageID: "new@example.com"},
		email.Envelope{UID: 3},
	)
	p := New(mbox, st, Options{})

	res := p.Poll(ctx)
	require.NoError(t, res.Error)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, uint32(2), res.Messages[0].UID)
	assert.Equal(t, uint32(3), res.Messages[1].UID)
	assert.Equal(t, PollIdle, p.Status().State)
	assert.False(t, p.Status().LastPoll.IsZero())

	mbox.set(
		email.Envelope{UID: 2, MessageID: "new@example.com"},
		email.Envelope{UID: 4, MessageID: "later@example.com"},
	)
	res = p.Poll(ctx)
	require.NoError(t, res.Error)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "later@example.com", res.Messages[0].MessageID)
}

func TestPoll_FetchError(t *testing.T) {
	mbox := &fakeMailbox{err: errors.New("connection refused")}
	p := New(mbox, testutil.NewTestStore(t), Options{Mailbox: "Support"})

	res := p.Poll(context.Background())
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "polling Support")
	assert.Empty(t, res.Messages)

	status := p.Status()
	assert.Equal(t, PollError, status.State)
	assert.Equal(t, "error", status.State.String())
	assert.ErrorIs(t, status.Error, mbox.err)
}

func TestStart_PollsImmediatelyAndOnRefresh(t *testing.T) {
	mbox := &fakeMailbox{}
	mbox.set(email.Envelope{UID: 1, MessageID: "a@example.com"})
	p := New(mbox, testutil.NewTestStore(t), Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := p.Start(ctx)
	require.NotNil(t, results)
	assert.Nil(t, p.Start(ctx))

	first := <-results
	require.Len(t, first.Messages, 1)

	mbox.set(
		email.Envelope{UID: 1, MessageID: "a@example.com"},
		email.Envelope{UID: 2, MessageID: "b@example.com"},
	)
	p.Refresh()
	second := <-results
	require.Len(t, second.Messages, 1)
	assert.Equal(t, "b@example.com", second.Messages[0].MessageID)

	p.Stop()
	_, open := <-results
	assert.False(t, open)
}

func TestStart_ClosesOnCancel(t *testing.T) {
	p := New(&fakeMailbox{}, testutil.NewTestStore(t), Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	results := p.Start(ctx)
	<-results
	cancel()

	select {
	case _, open := <-results:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("result channel was not closed")
	}
}
