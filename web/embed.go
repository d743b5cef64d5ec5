package web

import "embed"

// TemplatesFS holds the server-rendered report page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and chart script of the report page.
//
//go:embed static/*
var StaticFS embed.FS
