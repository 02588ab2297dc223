package api

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html static/*
var assets embed.FS

var pageTemplate = template.Must(template.New("").ParseFS(assets, "templates/*.html"))
