// Package web holds the templates and static assets compiled into the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tmpl assets
var files embed.FS

// Layout is the template every page is rendered inside.
const Layout = "templates/base.html.tmpl"

// Pages lists the page templates, each rendered inside Layout.
var Pages = []string{
	"home.html.tmpl",
	"table.html.tmpl",
	"active_calls.html.tmpl",
	"qr_list.html.tmpl",
	"error.html.tmpl",
}

// Files is the whole embedded tree.
func Files() fs.FS {
	return files
}

// Assets is rooted at the assets directory.
func Assets() fs.FS {
	sub, err := fs.Sub(files, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}
