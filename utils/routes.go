package utils

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
)

// Routes lists the routes registered on r as "METHOD /path".
func Routes(r chi.Routes) []string {
	var routes []string
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+strings.ReplaceAll(route, "/*/", "/"))
		return nil
	}
	if err := chi.Walk(r, walkFunc); err != nil {
		return nil
	}
	return routes
}
