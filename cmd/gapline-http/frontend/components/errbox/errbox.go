// Package errbox renders an inline error box. Importing it also makes every
// template that fails to render show the error in place.
package errbox

import (
	"io"
	"log"

	"git.unix.lgbt/diamondburned/gapline/cmd/gapline-http/frontend"
)

var errbox = frontend.Templater.Subtemplate("errbox")

func init() {
	frontend.Templater.OnRenderFail(func(w io.Writer, name string, err error) {
		log.Printf("failed to render %s: %v", name, err)
		errbox.Execute(w, err)
	})
}
