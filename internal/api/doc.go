// Package api is the HTTP client for the serverless-pdf-chat REST API.
//
// # Endpoints
//
// The client consumes four endpoints, all rooted at the configured base URL:
//
//   - POST /doc/{documentid} — create a conversation, returns its id
//   - GET  /doc/{documentid}/{conversationid} — fetch a conversation
//   - POST /{documentid}/{conversationid} — submit a prompt ({fileName, prompt})
//   - GET  /doc/{documentid} — document detail with conversation list
//
// Every request carries a bearer token from the configured TokenSource and
// an X-Request-Id header for log correlation.
//
// # Errors
//
// Failures are wrapped per operation (FetchError, CreateError, PostError) so
// the sync engine and front ends can discriminate without string matching.
// Non-2xx responses surface as StatusError inside the operation wrapper.
package api
