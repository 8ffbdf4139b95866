// ABOUTME: Sync engine driving the fetch, creation, and submission workflows
// ABOUTME: Applies optimistic updates and reconciles store state against the remote service

package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// RemoteChatService is the remote API surface the engine synchronizes
// against. Implemented by internal/api.Client; faked in tests.
type RemoteChatService interface {
	CreateConversation(ctx context.Context, documentID string) (string, error)
	GetConversation(ctx context.Context, documentID, conversationID string) (*Conversation, error)
	PostPrompt(ctx context.Context, documentID, conversationID, fileName, prompt string) error
	GetDocument(ctx context.Context, documentID string) (*DocumentDetail, error)
}

// Navigator is the routing collaborator. After creating a conversation the
// engine updates the navigation target so reloads and deep links resolve to
// the new conversation id.
type Navigator interface {
	Navigate(documentID, conversationID string)
}

// Engine orchestrates the user-triggered workflows against the remote
// service and owns all writes to the Store. The presentation layer never
// mutates the store directly; it raises intents (prompt edits, submit,
// visibility toggle) that map onto engine operations.
type Engine struct {
	remote     RemoteChatService
	nav        Navigator
	store      *Store
	documentID string
	logger     *slog.Logger

	// applyMu serializes the generation check with the store replace so a
	// stale fetch cannot overwrite a newer result between the two steps.
	applyMu sync.Mutex
	gen     uint64
}

// NewEngine creates an engine for one document. nav may be nil when there is
// no routing collaborator (scripted one-shot use). Pass nil logger for the
// default.
func NewEngine(remote RemoteChatService, nav Navigator, store *Store, documentID string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		remote:     remote,
		nav:        nav,
		store:      store,
		documentID: documentID,
		logger:     logger.With("component", "engine", "document_id", documentID),
	}
}

// Store returns the state container the engine writes to.
func (e *Engine) Store() *Store {
	return e.store
}

// nextGen starts a new load/submit cycle and returns its generation.
// A resolving fetch only applies its result while its generation is still
// the latest, so a stale response cannot overwrite a newer one.
func (e *Engine) nextGen() uint64 {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	e.gen++
	return e.gen
}

// applyIfCurrent replaces the store's conversation if gen is still the
// latest generation. Reports whether the result was applied.
func (e *Engine) applyIfCurrent(gen uint64, conv *Conversation) bool {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	if gen != e.gen {
		return false
	}
	e.store.Replace(conv)
	return true
}

// Load fetches the authoritative conversation and replaces the store with
// it. The conversation-load flag is restored to idle on every exit path so
// the UI never sticks in a permanent loading state; on failure the store is
// left unchanged (stale but consistent) and the fetch error is propagated
// unretried.
func (e *Engine) Load(ctx context.Context, conversationID string) error {
	gen := e.nextGen()

	e.store.SetConversationLoad(StatusLoading)
	defer e.store.SetConversationLoad(StatusIdle)

	conv, err := e.remote.GetConversation(ctx, e.documentID, conversationID)
	if err != nil {
		e.logger.Warn("conversation fetch failed",
			"conversation_id", conversationID,
			"error", err)
		return err
	}

	if !e.applyIfCurrent(gen, conv) {
		e.logger.Debug("discarded stale fetch result",
			"conversation_id", conversationID,
			"generation", gen)
		return nil
	}

	e.logger.Debug("conversation loaded",
		"conversation_id", conversationID,
		"message_count", len(conv.Messages))
	return nil
}

// CreateAndLoad creates a fresh server-side conversation, triggers a load to
// populate the store with it, and updates the navigation target to the new
// id. The list-op flag reflects only the creation call: it returns to idle
// once the load has been issued, not once it completes. The triggered load
// is returned as its own observable task so callers that want stricter
// consistency can await it.
func (e *Engine) CreateAndLoad(ctx context.Context) (string, <-chan error, error) {
	e.store.SetConversationListOp(StatusLoading)

	conversationID, err := e.remote.CreateConversation(ctx, e.documentID)
	if err != nil {
		e.store.SetConversationListOp(StatusIdle)
		e.logger.Warn("conversation create failed", "error", err)
		return "", nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- e.Load(ctx, conversationID)
	}()

	if e.nav != nil {
		e.nav.Navigate(e.documentID, conversationID)
	}

	e.store.SetConversationListOp(StatusIdle)
	e.logger.Info("conversation created", "conversation_id", conversationID)
	return conversationID, done, nil
}

// Submit sends the current prompt. The user's message is appended to a copy
// of the conversation and made visible immediately, before any network round
// trip completes; the subsequent reconciling load replaces that optimistic
// state with the server's version wholesale. If the post failed server-side
// the optimistic message is silently dropped by the reconciliation — that is
// accepted, user-visible behavior. A no-op when no conversation is active.
func (e *Engine) Submit(ctx context.Context) error {
	conv := e.store.Conversation()
	if conv == nil {
		return nil
	}
	prompt := e.store.Prompt()

	e.store.SetMessageSend(StatusLoading)
	defer e.store.SetMessageSend(StatusIdle)

	gen := e.nextGen()
	e.applyIfCurrent(gen, conv.WithMessage(NewUserMessage(prompt)))

	postErr := e.remote.PostPrompt(ctx,
		conv.Document.DocumentID,
		conv.ConversationID,
		conv.Document.Filename,
		prompt)
	if postErr != nil {
		e.logger.Warn("prompt post failed",
			"conversation_id", conv.ConversationID,
			"error", postErr)
	}

	// Input clears and the reconciling fetch runs whether or not the post
	// succeeded; a failed send surfaces only as the optimistic message
	// disappearing once the authoritative history is reloaded.
	e.store.SetPrompt("")
	loadErr := e.Load(ctx, conv.ConversationID)

	if postErr != nil {
		return postErr
	}
	return loadErr
}

// SwitchConversation navigates to an existing conversation of the document
// and loads it.
func (e *Engine) SwitchConversation(ctx context.Context, conversationID string) error {
	if e.nav != nil {
		e.nav.Navigate(e.documentID, conversationID)
	}
	return e.Load(ctx, conversationID)
}

// ListConversations fetches the document's conversation list.
func (e *Engine) ListConversations(ctx context.Context) ([]ConversationRef, error) {
	detail, err := e.remote.GetDocument(ctx, e.documentID)
	if err != nil {
		return nil, err
	}
	return detail.Conversations, nil
}

// ToggleVisible flips the chat panel visibility. Transitioning from hidden
// to visible with no active conversation first creates and loads a fresh
// conversation, so every chat session the user opens is backed by a
// server-side conversation unless one was already loaded via routing. A
// create failure leaves visibility unchanged.
func (e *Engine) ToggleVisible(ctx context.Context) error {
	snap := e.store.Snapshot()

	if !snap.Visible && snap.Conversation == nil {
		_, done, err := e.CreateAndLoad(ctx)
		if err != nil {
			return err
		}
		if err := <-done; err != nil {
			e.store.SetVisible(!snap.Visible)
			return err
		}
	}

	e.store.SetVisible(!snap.Visible)
	return nil
}

// SetPrompt records the current input buffer contents.
func (e *Engine) SetPrompt(prompt string) {
	e.store.SetPrompt(prompt)
}

// HandleKey maps a key press intent onto its workflow. Enter submits the
// current prompt; every other key is ignored here (prompt edits arrive via
// SetPrompt).
func (e *Engine) HandleKey(ctx context.Context, key string) error {
	if strings.EqualFold(key, "enter") {
		return e.Submit(ctx)
	}
	return nil
}
