// ABOUTME: Tests for the sync engine workflows: fetch, creation, submission, visibility
// ABOUTME: Covers optimistic updates, reconciliation, flag restoration, and stale-fetch discard

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is a scripted RemoteChatService. Call counters are always
// tracked; behavior is overridden per test via the function fields.
type fakeRemote struct {
	mu          sync.Mutex
	createCalls int
	getCalls    int
	postCalls   int
	docCalls    int

	createFn func(ctx context.Context, documentID string) (string, error)
	getFn    func(ctx context.Context, documentID, conversationID string) (*Conversation, error)
	postFn   func(ctx context.Context, documentID, conversationID, fileName, prompt string) error
	docFn    func(ctx context.Context, documentID string) (*DocumentDetail, error)
}

func (f *fakeRemote) CreateConversation(ctx context.Context, documentID string) (string, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(ctx, documentID)
	}
	return "conv-new", nil
}

func (f *fakeRemote) GetConversation(ctx context.Context, documentID, conversationID string) (*Conversation, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.getFn != nil {
		return f.getFn(ctx, documentID, conversationID)
	}
	return &Conversation{
		ConversationID: conversationID,
		Document:       Document{DocumentID: documentID, Filename: "manual.pdf"},
		Messages:       []Message{},
	}, nil
}

func (f *fakeRemote) PostPrompt(ctx context.Context, documentID, conversationID, fileName, prompt string) error {
	f.mu.Lock()
	f.postCalls++
	f.mu.Unlock()
	if f.postFn != nil {
		return f.postFn(ctx, documentID, conversationID, fileName, prompt)
	}
	return nil
}

func (f *fakeRemote) GetDocument(ctx context.Context, documentID string) (*DocumentDetail, error) {
	f.mu.Lock()
	f.docCalls++
	f.mu.Unlock()
	if f.docFn != nil {
		return f.docFn(ctx, documentID)
	}
	return &DocumentDetail{}, nil
}

func (f *fakeRemote) calls() (create, get, post int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.getCalls, f.postCalls
}

// fakeNavigator records navigation targets.
type fakeNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *fakeNavigator) Navigate(documentID, conversationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, documentID+"/"+conversationID)
}

func (n *fakeNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.targets) == 0 {
		return ""
	}
	return n.targets[len(n.targets)-1]
}

func newTestEngine(remote *fakeRemote) (*Engine, *Store, *fakeNavigator) {
	store := NewStore(nil)
	nav := &fakeNavigator{}
	return NewEngine(remote, nav, store, "d1", nil), store, nav
}

func activeConversation(messages ...Message) *Conversation {
	return &Conversation{
		ConversationID: "c1",
		Document:       Document{DocumentID: "d1", Filename: "manual.pdf"},
		Messages:       messages,
	}
}

func TestLoad_ReplacesStore(t *testing.T) {
	remote := &fakeRemote{
		getFn: func(_ context.Context, documentID, conversationID string) (*Conversation, error) {
			return &Conversation{
				ConversationID: conversationID,
				Document:       Document{DocumentID: documentID, Filename: "manual.pdf"},
				Messages:       []Message{NewUserMessage("hello")},
			}, nil
		},
	}
	engine, store, _ := newTestEngine(remote)

	require.NoError(t, engine.Load(context.Background(), "c1"))

	snap := store.Snapshot()
	require.NotNil(t, snap.Conversation)
	assert.Equal(t, "c1", snap.Conversation.ConversationID)
	assert.Len(t, snap.Conversation.Messages, 1)
	assert.Equal(t, StatusIdle, snap.ConversationLoad)
}

func TestLoad_FlagLoadingWhileFetchPending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	remote := &fakeRemote{
		getFn: func(_ context.Context, documentID, conversationID string) (*Conversation, error) {
			close(started)
			<-release
			return activeConversation(), nil
		},
	}
	engine, store, _ := newTestEngine(remote)

	done := make(chan error, 1)
	go func() { done <- engine.Load(context.Background(), "c1") }()

	<-started
	assert.Equal(t, StatusLoading, store.Snapshot().ConversationLoad)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusIdle, store.Snapshot().ConversationLoad)
}

func TestLoad_FetchErrorLeavesStoreUnchanged(t *testing.T) {
	stale := activeConversation(NewUserMessage("old"))
	fetchErr := errors.New("boom")
	remote := &fakeRemote{
		getFn: func(context.Context, string, string) (*Conversation, error) {
			return nil, fetchErr
		},
	}
	engine, store, _ := newTestEngine(remote)
	store.Replace(stale)

	err := engine.Load(context.Background(), "c1")
	require.ErrorIs(t, err, fetchErr)

	// P3: flag restored; store stale but consistent.
	snap := store.Snapshot()
	assert.Equal(t, StatusIdle, snap.ConversationLoad)
	assert.Same(t, stale, snap.Conversation)
}

func TestLoad_StaleFetchDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	first := true
	var mu sync.Mutex

	remote := &fakeRemote{
		getFn: func(_ context.Context, _, conversationID string) (*Conversation, error) {
			mu.Lock()
			mine := first
			first = false
			mu.Unlock()
			if mine {
				close(firstStarted)
				<-releaseFirst
			}
			return activeConversation(NewUserMessage(conversationID)), nil
		},
	}
	engine, store, _ := newTestEngine(remote)

	firstDone := make(chan error, 1)
	go func() { firstDone <- engine.Load(context.Background(), "old") }()
	<-firstStarted

	// A newer load completes while the first fetch is still in flight.
	require.NoError(t, engine.Load(context.Background(), "new"))

	close(releaseFirst)
	require.NoError(t, <-firstDone)

	// The stale response must not overwrite the newer one.
	conv := store.Conversation()
	require.NotNil(t, conv)
	assert.Equal(t, "new", conv.Messages[0].Data.Content)
}

func TestSubmit_NoConversationIsNoOp(t *testing.T) {
	remote := &fakeRemote{}
	engine, store, _ := newTestEngine(remote)
	store.SetPrompt("hello")

	require.NoError(t, engine.Submit(context.Background()))

	create, get, post := remote.calls()
	assert.Zero(t, create)
	assert.Zero(t, get)
	assert.Zero(t, post)
	assert.Equal(t, StatusIdle, store.Snapshot().MessageSend)
}

func TestSubmit_OptimisticAppendThenReconcile(t *testing.T) {
	m1 := Message{Type: MessageTypeAI, Data: MessagePayload{Content: "hi there"}}
	postStarted := make(chan struct{})
	releasePost := make(chan struct{})

	remote := &fakeRemote{
		postFn: func(_ context.Context, _, _, fileName, prompt string) error {
			assert.Equal(t, "manual.pdf", fileName)
			assert.Equal(t, "hello", prompt)
			close(postStarted)
			<-releasePost
			return nil
		},
		getFn: func(context.Context, string, string) (*Conversation, error) {
			// Authoritative history: the echoed prompt plus the reply.
			return activeConversation(
				m1,
				NewUserMessage("hello"),
				Message{Type: MessageTypeAI, Data: MessagePayload{Content: "answer"}},
			), nil
		},
	}
	engine, store, _ := newTestEngine(remote)
	store.Replace(activeConversation(m1))
	store.SetPrompt("hello")

	done := make(chan error, 1)
	go func() { done <- engine.Submit(context.Background()) }()

	// P1: the user's message is visible before any network response.
	<-postStarted
	snap := store.Snapshot()
	require.NotNil(t, snap.Conversation)
	require.Len(t, snap.Conversation.Messages, 2)
	last := snap.Conversation.Messages[1]
	assert.Equal(t, MessageTypeText, last.Type)
	assert.Equal(t, "hello", last.Data.Content)
	assert.Empty(t, last.Data.AdditionalKwargs)
	assert.False(t, last.Data.Example)
	assert.Equal(t, StatusLoading, snap.MessageSend)

	close(releasePost)
	require.NoError(t, <-done)

	// P2: exactly the server's N+2 messages, not N+1 and not N.
	snap = store.Snapshot()
	require.Len(t, snap.Conversation.Messages, 3)
	assert.Equal(t, "answer", snap.Conversation.Messages[2].Data.Content)
	assert.Empty(t, snap.Prompt)
	assert.Equal(t, StatusIdle, snap.MessageSend)
}

func TestSubmit_PostFailureDropsOptimisticMessage(t *testing.T) {
	m1 := Message{Type: MessageTypeAI, Data: MessagePayload{Content: "hi there"}}
	postErr := errors.New("inference failed")

	remote := &fakeRemote{
		postFn: func(context.Context, string, string, string, string) error {
			return postErr
		},
		getFn: func(context.Context, string, string) (*Conversation, error) {
			// Server never recorded the prompt.
			return activeConversation(m1), nil
		},
	}
	engine, store, _ := newTestEngine(remote)
	store.Replace(activeConversation(m1))
	store.SetPrompt("hello")

	err := engine.Submit(context.Background())
	require.ErrorIs(t, err, postErr)

	// The workflow still cleared the input and reconciled; the optimistic
	// message is gone.
	snap := store.Snapshot()
	require.Len(t, snap.Conversation.Messages, 1)
	assert.Empty(t, snap.Prompt)
	assert.Equal(t, StatusIdle, snap.MessageSend)

	_, get, post := remote.calls()
	assert.Equal(t, 1, post)
	assert.Equal(t, 1, get)
}

func TestCreateAndLoad_ListFlagClearsBeforeLoadCompletes(t *testing.T) {
	getStarted := make(chan struct{})
	releaseGet := make(chan struct{})
	remote := &fakeRemote{
		createFn: func(context.Context, string) (string, error) {
			return "c1", nil
		},
		getFn: func(_ context.Context, documentID, conversationID string) (*Conversation, error) {
			close(getStarted)
			<-releaseGet
			return &Conversation{
				ConversationID: conversationID,
				Document:       Document{DocumentID: documentID},
				Messages:       []Message{},
			}, nil
		},
	}
	engine, store, nav := newTestEngine(remote)

	id, done, err := engine.CreateAndLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
	assert.Equal(t, "d1/c1", nav.last())

	// The list-op flag reflects only the creation call; the triggered load
	// is still in flight.
	<-getStarted
	assert.Equal(t, StatusIdle, store.Snapshot().ConversationListOp)

	close(releaseGet)
	require.NoError(t, <-done)
	assert.Equal(t, "c1", store.Conversation().ConversationID)
}

func TestCreateAndLoad_CreateError(t *testing.T) {
	createErr := errors.New("denied")
	remote := &fakeRemote{
		createFn: func(context.Context, string) (string, error) {
			return "", createErr
		},
	}
	engine, store, nav := newTestEngine(remote)

	_, _, err := engine.CreateAndLoad(context.Background())
	require.ErrorIs(t, err, createErr)

	assert.Equal(t, StatusIdle, store.Snapshot().ConversationListOp)
	assert.Empty(t, nav.last())
	assert.Nil(t, store.Conversation())

	_, get, _ := remote.calls()
	assert.Zero(t, get)
}

func TestToggleVisible_FirstOpenCreatesConversation(t *testing.T) {
	// Scenario: documentId "d1", no existing conversation.
	remote := &fakeRemote{
		createFn: func(_ context.Context, documentID string) (string, error) {
			assert.Equal(t, "d1", documentID)
			return "c1", nil
		},
	}
	engine, store, _ := newTestEngine(remote)

	require.NoError(t, engine.ToggleVisible(context.Background()))

	// P4: exactly one create and one get before visibility flips on.
	create, get, _ := remote.calls()
	assert.Equal(t, 1, create)
	assert.Equal(t, 1, get)

	snap := store.Snapshot()
	assert.True(t, snap.Visible)
	require.NotNil(t, snap.Conversation)
	assert.Equal(t, "c1", snap.Conversation.ConversationID)
	assert.Empty(t, snap.Conversation.Messages)
}

func TestToggleVisible_IdempotentWithActiveConversation(t *testing.T) {
	remote := &fakeRemote{}
	engine, store, _ := newTestEngine(remote)
	store.Replace(activeConversation())

	require.NoError(t, engine.ToggleVisible(context.Background()))
	assert.True(t, store.Snapshot().Visible)

	require.NoError(t, engine.ToggleVisible(context.Background()))
	assert.False(t, store.Snapshot().Visible)

	// P5: no additional remote calls for a re-toggle.
	create, get, post := remote.calls()
	assert.Zero(t, create)
	assert.Zero(t, get)
	assert.Zero(t, post)
}

func TestToggleVisible_CreateErrorKeepsHidden(t *testing.T) {
	remote := &fakeRemote{
		createFn: func(context.Context, string) (string, error) {
			return "", errors.New("denied")
		},
	}
	engine, store, _ := newTestEngine(remote)

	require.Error(t, engine.ToggleVisible(context.Background()))
	assert.False(t, store.Snapshot().Visible)
}

func TestSwitchConversation(t *testing.T) {
	remote := &fakeRemote{}
	engine, store, nav := newTestEngine(remote)

	require.NoError(t, engine.SwitchConversation(context.Background(), "c2"))

	assert.Equal(t, "d1/c2", nav.last())
	require.NotNil(t, store.Conversation())
	assert.Equal(t, "c2", store.Conversation().ConversationID)
}

func TestListConversations(t *testing.T) {
	remote := &fakeRemote{
		docFn: func(context.Context, string) (*DocumentDetail, error) {
			return &DocumentDetail{
				Conversations: []ConversationRef{
					{ConversationID: "c1", Created: "2026-08-01T00:00:00Z"},
					{ConversationID: "c2", Created: "2026-08-02T00:00:00Z"},
				},
			}, nil
		},
	}
	engine, _, _ := newTestEngine(remote)

	refs, err := engine.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "c2", refs[1].ConversationID)
}

func TestHandleKey(t *testing.T) {
	remote := &fakeRemote{}
	engine, store, _ := newTestEngine(remote)
	store.Replace(activeConversation())
	store.SetPrompt("hi")

	// Non-enter keys do nothing.
	require.NoError(t, engine.HandleKey(context.Background(), "a"))
	_, _, post := remote.calls()
	assert.Zero(t, post)

	// Enter submits, matching the submit intent.
	require.NoError(t, engine.HandleKey(context.Background(), "enter"))
	_, _, post = remote.calls()
	assert.Equal(t, 1, post)
	assert.Empty(t, store.Prompt())
}

func TestSubmit_FlagIdleAfterEveryOutcome(t *testing.T) {
	// P3 across the submission workflow, success and failure.
	cases := []struct {
		name    string
		postErr error
		getErr  error
	}{
		{name: "success"},
		{name: "post fails", postErr: errors.New("post boom")},
		{name: "reconcile fails", getErr: errors.New("get boom")},
		{name: "both fail", postErr: errors.New("post boom"), getErr: errors.New("get boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := &fakeRemote{
				postFn: func(context.Context, string, string, string, string) error {
					return tc.postErr
				},
				getFn: func(context.Context, string, string) (*Conversation, error) {
					if tc.getErr != nil {
						return nil, tc.getErr
					}
					return activeConversation(), nil
				},
			}
			engine, store, _ := newTestEngine(remote)
			store.Replace(activeConversation())
			store.SetPrompt("hi")

			err := engine.Submit(context.Background())
			if tc.postErr != nil {
				assert.ErrorIs(t, err, tc.postErr)
			} else if tc.getErr != nil {
				assert.ErrorIs(t, err, tc.getErr)
			} else {
				assert.NoError(t, err)
			}

			snap := store.Snapshot()
			assert.Equal(t, StatusIdle, snap.MessageSend)
			assert.Equal(t, StatusIdle, snap.ConversationLoad)
		})
	}
}

func TestToggleVisible_WaitsForLoadBeforeVisible(t *testing.T) {
	releaseGet := make(chan struct{})
	remote := &fakeRemote{
		getFn: func(_ context.Context, documentID, conversationID string) (*Conversation, error) {
			<-releaseGet
			return &Conversation{
				ConversationID: conversationID,
				Document:       Document{DocumentID: documentID},
				Messages:       []Message{},
			}, nil
		},
	}
	engine, store, _ := newTestEngine(remote)

	done := make(chan error, 1)
	go func() { done <- engine.ToggleVisible(context.Background()) }()

	// Until the load settles the panel stays hidden.
	assert.Never(t, func() bool {
		return store.Snapshot().Visible
	}, 50*time.Millisecond, 10*time.Millisecond)

	close(releaseGet)
	require.NoError(t, <-done)
	assert.True(t, store.Snapshot().Visible)
}
