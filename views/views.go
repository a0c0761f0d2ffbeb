// Package views embeds the page and email templates rendered with the
// django engine, and the static assets the pages load.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Extension of every template file
const Extension = ".html"

// Templates returns the template tree rooted at its top directory
func Templates() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static returns the assets served under /static
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// New returns a django engine over the embedded templates. funcs are
// registered as globals, e.g. the auth template helpers.
func New(funcs map[string]any) *django.Engine {
	engine := django.NewFileSystem(http.FS(Templates()), Extension)
	if len(funcs) > 0 {
		engine.AddFuncMap(funcs)
	}
	return engine
}
