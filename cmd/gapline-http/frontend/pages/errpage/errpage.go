package errpage

import (
	"net/http"

	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend"
	_ "git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend/components/errbox"
)

var errpage = frontend.Templater.Register("errpage", "pages/errpage/errpage.html")

// Respond writes the error page with the given status code.
func Respond(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(code)
	errpage.Execute(w, err)
}
