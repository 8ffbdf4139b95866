// Package config loads the TOML configuration shared by the pdf-chat front
// ends: the API endpoint, bearer token source, routing defaults (document and
// optional conversation id), and logging level. Values support ${VAR}
// environment expansion, and PDF_CHAT_API / PDF_CHAT_DOCUMENT override the
// file.
package config
