// Package web holds the prebuilt dashboard served at "/".
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:public
var public embed.FS

// FS returns the dashboard files rooted at public/.
func FS() fs.FS {
	sub, err := fs.Sub(public, "public")
	if err != nil {
		// public/ is embedded at build time, so Sub cannot fail.
		panic(err)
	}
	return sub
}
