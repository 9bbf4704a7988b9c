package index

import (
	"io"
	"net/http"
	"time"

	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend"
	_ "git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend/components/errbox"
)

var index = frontend.Templater.Register("index", "pages/index/index.html")

type renderData struct {
	Source  frontend.Source
	Dura    time.Duration // rounded to seconds
	Query   string
	Refresh bool
	Error   error
}

// Summaries reads and summarizes every series within the frame.
func (r *renderData) Summaries() []frontend.Summary {
	doc, err := r.Source.ReadRaw(r.Dura)
	if err != nil {
		r.Error = err
		return nil
	}

	summaries, err := r.Source.Summarize(doc)
	if err != nil {
		r.Error = err
		return nil
	}

	return summaries
}

// Render renders the index page.
func Render(w io.Writer, r *http.Request, src frontend.Source, d time.Duration) {
	index.Execute(w, &renderData{
		Source:  src,
		Dura:    d.Round(time.Second),
		Query:   r.FormValue("t"),
		Refresh: r.FormValue("refresh") != "",
	})
}
