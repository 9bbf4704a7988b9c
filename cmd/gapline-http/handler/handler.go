package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/gapline"
	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend"
	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend/pages/errpage"
	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend/pages/index"
	"git.unix.lgbt/diamondburned/gapline/internal/config"
	"github.com/diamondburned/tmplutil"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	minjson "github.com/tdewolff/minify/v2/json"
	"maze.io/x/duration"
)

var minifier = minify.New()

func init() {
	minifier.Add("text/html", html.DefaultMinifier)
	minifier.AddFunc("text/css", css.Minify)
	minifier.AddFunc("application/json", minjson.Minify)
}

// New creates a new handler serving the database at dbPath. If cfg is nil, then
// the default configuration is used.
func New(dbPath string, cfg *config.Config) http.Handler {
	if cfg == nil {
		cfg = config.Default()
	}

	src := frontend.Source{
		DBPath: dbPath,
		Config: cfg,
	}

	r := chi.NewRouter()
	r.Mount("/static", http.StripPrefix("/static", frontend.MountStatic()))
	r.Get("/schema.json", schema)

	r.Group(func(r chi.Router) {
		r.Use(tmplutil.AlwaysFlush)
		r.Use(middleware.NoCache)
		r.Use(middleware.Compress(5))

		r.Get("/", root(src))
		r.Get("/data/chartData.json", chartData(src))
		r.Get("/series/{key}", series(src))
	})

	return r
}

type jsonError struct {
	Error string
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(jsonError{Error: err.Error()})
}

// errorCode returns the HTTP status code for the given error.
func errorCode(err error) int {
	switch {
	case errors.Is(err, gapline.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gapline.ErrUnsorted):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// acceptsJSON returns true if the request prefers JSON over HTML.
func acceptsJSON(r *http.Request) bool {
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		if i := strings.IndexByte(accept, ';'); i != -1 {
			accept = accept[:i]
		}

		switch strings.TrimSpace(accept) {
		case "application/json":
			return true
		case "text/html":
			return false
		}
	}

	return false
}

func root(src frontend.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dura, err := parseDuration(r)

		if acceptsJSON(r) {
			if err != nil {
				writeJSONError(w, 400, err)
				return
			}

			doc, err := src.ReadRaw(dura)
			if err != nil {
				writeJSONError(w, errorCode(err), err)
				return
			}

			summaries, err := src.Summarize(doc)
			if err != nil {
				writeJSONError(w, errorCode(err), err)
				return
			}

			w.Header().Set("Content-Type", "application/json; charset=UTF-8")
			frontend.WriteJSON(w, summaries)
			return
		}

		if err != nil {
			errpage.Respond(w, 400, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=UTF-8")

		mw := minifier.Writer("text/html", w)
		defer mw.Close()

		index.Render(mw, r, src, dura)
	}
}

func chartData(src frontend.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dura, err := parseDuration(r)
		if err != nil {
			writeJSONError(w, 400, err)
			return
		}

		doc, err := src.ReadDocument(dura)
		if err != nil {
			writeJSONError(w, errorCode(err), err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		frontend.WriteJSON(w, doc)
	}
}

func series(src frontend.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dura, err := parseDuration(r)
		if err != nil {
			writeJSONError(w, 400, err)
			return
		}

		s, err := src.ReadSeries(chi.URLParam(r, "key"), dura)
		if err != nil {
			writeJSONError(w, errorCode(err), err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		frontend.WriteJSON(w, s)
	}
}

func schema(w http.ResponseWriter, r *http.Request) {
	b, err := minifier.Bytes("application/json", gapline.Schema)
	if err != nil {
		log.Println("failed to minify schema:", err)
		b = gapline.Schema
	}

	w.Header().Set("Content-Type", "application/schema+json")
	w.Write(b)
}

const maxTime = 365 * 24 * time.Hour // max 1yr

func parseDuration(r *http.Request) (time.Duration, error) {
	// Default to the last 3 hours' data.
	dura := 3 * time.Hour

	if t := r.FormValue("t"); t != "" {
		d, err := duration.ParseDuration(t)
		if err != nil {
			return 0, err
		}

		dura = time.Duration(d)

		if dura <= 0 || dura > maxTime {
			return 0, fmt.Errorf("duration %v is out of bound (0, %v]", d, maxTime)
		}
	}

	return dura, nil
}
