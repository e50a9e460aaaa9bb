// Package coffeeui embeds the frontend so the server binary runs without a checkout.
// Development builds read the same trees from disk instead.
package coffeeui

import "embed"

// StaticFS holds frontend/static: stylesheets and the htmx glue script.
//
//go:embed all:frontend/static
var StaticFS embed.FS

// TemplateFS holds frontend/templates: the layout, pages and partials.
//
//go:embed all:frontend/templates
var TemplateFS embed.FS
