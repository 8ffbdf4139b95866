// ABOUTME: Conversation and Message data types mirroring the serverless-pdf-chat wire format
// ABOUTME: Defines the LangChain-style message payload shape and status flag enumeration

package conversation

// Message type constants. Human prompts are stored as "text" messages,
// assistant responses as "ai" messages.
const (
	MessageTypeText = "text"
	MessageTypeAI   = "ai"
)

// Status tracks the in-flight/idle state of one asynchronous workflow.
// The three flags (conversation load, message send, conversation list op)
// are independent; they drive UI affordances, not mutual exclusion.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
)

// Document identifies the PDF a conversation is scoped to.
type Document struct {
	DocumentID string `json:"documentid"`
	Filename   string `json:"filename"`
}

// MessagePayload is the data portion of a message, shaped like a LangChain
// chat history entry as persisted by the backend's DynamoDB message store.
type MessagePayload struct {
	Content          string         `json:"content"`
	AdditionalKwargs map[string]any `json:"additional_kwargs"`
	Example          bool           `json:"example"`
}

// Message is one turn in a conversation. Ordering is positional within the
// conversation's message slice; no independent timestamp is guaranteed.
type Message struct {
	Type string         `json:"type"`
	Data MessagePayload `json:"data"`
}

// NewUserMessage builds a locally synthesized human prompt message, matching
// the shape the backend will echo once the prompt is persisted.
func NewUserMessage(content string) Message {
	return Message{
		Type: MessageTypeText,
		Data: MessagePayload{
			Content:          content,
			AdditionalKwargs: map[string]any{},
			Example:          false,
		},
	}
}

// Conversation is a document-scoped chat thread with an ordered message
// history. The document id never changes after creation and the message
// slice is append-only from the client's perspective.
type Conversation struct {
	ConversationID string    `json:"conversationid"`
	Document       Document  `json:"document"`
	Messages       []Message `json:"messages"`
}

// WithMessage returns a copy of the conversation with msg appended. The
// receiver's message slice is never aliased, so replacing the store with the
// returned value cannot mutate previously published snapshots.
func (c *Conversation) WithMessage(msg Message) *Conversation {
	messages := make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(messages, c.Messages)

	return &Conversation{
		ConversationID: c.ConversationID,
		Document:       c.Document,
		Messages:       append(messages, msg),
	}
}

// ConversationRef is a list entry for one of a document's conversations.
type ConversationRef struct {
	ConversationID string `json:"conversationid"`
	Created        string `json:"created"`
}

// DocumentDetail is a document together with its conversation list, as
// returned by the document endpoint.
type DocumentDetail struct {
	Document      Document          `json:"document"`
	Conversations []ConversationRef `json:"conversations"`
}
