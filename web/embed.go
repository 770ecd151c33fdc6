// Package web holds the portal's HTML templates and browser assets.
package web

import (
	"embed"
	"io/fs"
)

// Templates holds the layouts, partials and pages under templates/.
//
//go:embed templates
var Templates embed.FS

//go:embed static
var static embed.FS

// StaticFS returns the browser assets rooted at static/, as served under
// /static/.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}
