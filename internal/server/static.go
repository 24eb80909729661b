package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webAssets embed.FS

func staticFiles() http.Handler {
	sub, err := fs.Sub(webAssets, "web")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}
