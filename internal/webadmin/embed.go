// ABOUTME: Embeds HTML templates, static assets and help pages using go:embed
// ABOUTME: Provides templateFS, staticFS and helpDocsFS for runtime loading

package webadmin

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

//go:embed static
var staticFiles embed.FS

//go:embed docs/help/*.md
var helpDocsFS embed.FS

// staticFS serves the static directory at its root.
var staticFS = mustSub(staticFiles, "static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
