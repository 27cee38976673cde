// Package site serves the embedded public board page.
package site

import (
	"net/http"
)

// Register attaches the board page routes to mux.
//
//	GET /          -> index.html
//	GET /static/*  -> page assets
func Register(mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.FileServer(FS())
	mux.Handle("GET /{$}", files)
	mux.Handle("GET /static/", http.StripPrefix("/static", files))
}
