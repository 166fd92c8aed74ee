// Package api provides the HTTP server exposing image search, selection,
// and metadata endpoints to the host application's frontend.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8188")
	ListenAddr string
}
