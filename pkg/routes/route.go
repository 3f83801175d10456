package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Endpoint is a registered method and full path.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}
