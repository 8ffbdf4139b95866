// ABOUTME: Single-writer state container for the active conversation and its UI flags
// ABOUTME: Publishes full snapshots to subscribers on every mutation (push, not polling)

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each snapshot subscriber.
// Publishing is non-blocking; a subscriber that falls this far behind only
// misses intermediate snapshots, never the ability to read current state.
const subscriberBufferSize = 64

// Snapshot is the read-only view of the store handed to the presentation
// layer: the active conversation, the three workflow status flags, the input
// buffer, and the chat panel visibility.
type Snapshot struct {
	Conversation       *Conversation
	ConversationLoad   Status
	MessageSend        Status
	ConversationListOp Status
	Prompt             string
	Visible            bool
}

// Store holds the single currently-active conversation (or none) and the
// asynchronous status flags that gate UI affordances. It is a pure holder:
// no validation logic lives here, and all mutation is whole-value replacement
// funneled through the engine. Every mutation publishes a Snapshot to all
// subscribers.
type Store struct {
	mu sync.RWMutex

	conversation *Conversation
	loadStatus   Status
	sendStatus   Status
	listStatus   Status
	prompt       string
	visible      bool

	subscribers map[string]chan Snapshot
	logger      *slog.Logger
}

// NewStore creates an empty store with all flags idle. Pass nil logger for
// the default.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		loadStatus:  StatusIdle,
		sendStatus:  StatusIdle,
		listStatus:  StatusIdle,
		subscribers: make(map[string]chan Snapshot),
		logger:      logger.With("component", "store"),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Conversation returns the active conversation, or nil if none is loaded.
func (s *Store) Conversation() *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversation
}

// Replace swaps in a new conversation value wholesale. There are no partial
// in-place edits; last write wins on the conversation as a whole.
func (s *Store) Replace(conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = conv
	s.publishLocked()
}

// SetConversationLoad sets the fetch workflow flag.
func (s *Store) SetConversationLoad(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadStatus = status
	s.publishLocked()
}

// SetMessageSend sets the submission workflow flag.
func (s *Store) SetMessageSend(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendStatus = status
	s.publishLocked()
}

// SetConversationListOp sets the creation/list workflow flag.
func (s *Store) SetConversationListOp(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listStatus = status
	s.publishLocked()
}

// SetPrompt updates the input buffer.
func (s *Store) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.publishLocked()
}

// Prompt returns the current input buffer.
func (s *Store) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt
}

// SetVisible updates the chat panel visibility.
func (s *Store) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
	s.publishLocked()
}

// Subscribe registers a snapshot subscriber. Returns a channel that receives
// a Snapshot after every mutation and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled. The current snapshot is delivered immediately so new subscribers
// render without waiting for the next mutation.
func (s *Store) Subscribe(ctx context.Context) (<-chan Snapshot, string) {
	subID := uuid.New().String()
	ch := make(chan Snapshot, subscriberBufferSize)

	s.mu.Lock()
	s.subscribers[subID] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		s.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.subscribers[subID]
	if !ok {
		return
	}
	delete(s.subscribers, subID)
	close(ch)

	s.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the store's notification fan-out and closes all
// subscriber channels.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for subID, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, subID)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Conversation:       s.conversation,
		ConversationLoad:   s.loadStatus,
		MessageSend:        s.sendStatus,
		ConversationListOp: s.listStatus,
		Prompt:             s.prompt,
		Visible:            s.visible,
	}
}

// publishLocked sends the current snapshot to all subscribers. Non-blocking:
// snapshots are dropped for subscribers whose channels are full.
func (s *Store) publishLocked() {
	snap := s.snapshotLocked()
	for subID, ch := range s.subscribers {
		select {
		case ch <- snap:
			// Sent
		default:
			s.logger.Debug("dropped snapshot for slow subscriber", "sub_id", subID)
		}
	}
}
