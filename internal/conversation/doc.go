// Package conversation implements the client-side synchronization core for
// document-scoped chat threads.
//
// # Overview
//
// A conversation is a persisted sequence of user/assistant message pairs held
// by the remote serverless-pdf-chat API; this package keeps a local copy of
// the single active conversation in sync with it. The package has two halves:
//
//   - Store: a single-writer state container holding the active conversation,
//     the three workflow status flags, the input buffer, and the chat panel
//     visibility. Every mutation publishes a Snapshot to subscribers so the
//     presentation layer re-renders without polling.
//
//   - Engine: the orchestrator for the user-triggered workflows — fetch,
//     creation, and prompt submission — each a short protocol against the
//     remote service followed by a store mutation.
//
// # Optimistic updates
//
// Submit appends the user's prompt to a copy of the conversation and replaces
// the store before the network round trip completes, then reloads the
// authoritative conversation once the post returns. Reconciliation is
// last-fetch-wins with no merge: if the post failed server-side the optimistic
// message simply disappears on reload.
//
// # Generations
//
// Independently triggered workflows can race (a route-change load against a
// submit's reconciling fetch). Each load/submit cycle takes a monotonic
// generation and a resolving fetch only applies its result while its
// generation is still the latest, so a stale response never overwrites a
// newer one.
//
// # Status flags
//
// The three flags (conversation load, message send, conversation list op) are
// independent {idle, loading} enumerations that exist purely to drive UI
// affordances. Every workflow restores its flag to idle on all exit paths,
// success or failure.
package conversation
