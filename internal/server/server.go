// Package server provides a local preview server over the generated
// output, so the rebuilt OPML and translated feeds can be checked
// before publishing.
package server

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>babelfeed preview</title></head>
<body>
<h1>Translated feeds</h1>
<ul>
{{range .Feeds}}<li><a href="/feeds/{{.}}">{{.}}</a></li>
{{end}}</ul>
{{if .OPML}}<p><a href="/opml">{{.OPML}}</a></p>{{end}}
</body>
</html>
`))

// Server serves the pipeline's output directory.
type Server struct {
	feedsDir string
	opmlPath string
	router   chi.Router
}

// New creates a preview server over the given output locations.
func New(feedsDir, opmlPath string) *Server {
	s := &Server{feedsDir: feedsDir, opmlPath: opmlPath}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleIndex)
	r.Get("/feeds/{name}", s.handleFeed)
	r.Get("/opml", s.handleOPML)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	s.router = r
}

// ListenAndServe starts the server on addr.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.feedsDir)
	if err != nil && !os.IsNotExist(err) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var feeds []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".xml") {
			feeds = append(feeds, e.Name())
		}
	}
	sort.Strings(feeds)

	data := struct {
		Feeds []string
		OPML  string
	}{Feeds: feeds}
	if _, err := os.Stat(s.opmlPath); err == nil {
		data.OPML = filepath.Base(s.opmlPath)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(w, data)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// Generated filenames are slugs; reject anything that could escape.
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".xml") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.feedsDir, name))
}

func (s *Server) handleOPML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
	http.ServeFile(w, r, s.opmlPath)
}
