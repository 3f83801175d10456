// Package routes declares route groups and registers them on a ServeMux.
package routes

import (
	"net/http"
	"sort"
)

// Group organizes routes under a common prefix. Middleware wraps every
// route of the group and its children.
type Group struct {
	Prefix     string
	Routes     []Route
	Children   []Group
	Middleware []func(http.Handler) http.Handler
}

// Register adds all routes from the given groups to the mux and returns
// the endpoints it registered, sorted by path then method.
func Register(mux *http.ServeMux, groups ...Group) []Endpoint {
	var endpoints []Endpoint
	for _, group := range groups {
		endpoints = registerGroup(mux, "", nil, group, endpoints)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})
	return endpoints
}

func registerGroup(
	mux *http.ServeMux,
	parentPrefix string,
	parentMiddleware []func(http.Handler) http.Handler,
	group Group,
	endpoints []Endpoint,
) []Endpoint {
	fullPrefix := parentPrefix + group.Prefix
	mws := append(append([]func(http.Handler) http.Handler{}, parentMiddleware...), group.Middleware...)

	for _, route := range group.Routes {
		path := fullPrefix + route.Pattern
		if path == "" {
			path = "/"
		}

		var handler http.Handler = route.Handler
		for i := len(mws) - 1; i >= 0; i-- {
			handler = mws[i](handler)
		}

		mux.Handle(route.Method+" "+path, handler)
		endpoints = append(endpoints, Endpoint{Method: route.Method, Path: path})
	}
	for _, child := range group.Children {
		endpoints = registerGroup(mux, fullPrefix, mws, child, endpoints)
	}
	return endpoints
}
