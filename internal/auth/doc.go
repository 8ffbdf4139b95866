// Package auth handles the bearer token the client presents to the
// serverless-pdf-chat API.
//
// Tokens are Cognito ID tokens minted by the hosted UI; the client never
// verifies them (the API does), it only resolves them from the environment or
// the XDG config directory and inspects their claims to surface subject and
// expiry to the user.
package auth
