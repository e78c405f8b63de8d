// Package web embeds the dashboard single-page app.
package web

import "embed"

// StaticFS embeds the dashboard shell and its assets. index.html is the
// fallback for every non-API path.
//
//go:embed static
var StaticFS embed.FS
