package components

import (
	"context"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
)

// UpdatesPath is the long-lived stream the page opens on load.
const UpdatesPath = "/updates"

// Page renders the full shell: sidebar, table detail and query pane. The
// content is server-rendered; the update stream only carries changes.
func Page(tr *locale.Translator, view navigator.Sidebar, st querypane.State, stylesheet string) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!doctype html><html lang="`, tr.Tag().String(), `"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(tr.T(locale.PageTitle))
		h.raw(`</title>`)
		h.raw(`<link rel="stylesheet" href="`)
		h.text(stylesheet)
		h.raw(`">`)
		h.raw(`<script type="module" src="`, DatastarScript, `"></script>`)
		h.raw(`</head><body data-init="@get('`, UpdatesPath, `')">`)
		h.raw(`<main class="layout">`)
		h.render(ctx, Sidebar(view))
		h.raw(`<div class="layout__main">`)
		h.render(ctx, Detail(view.Detail))
		h.render(ctx, QueryPane(tr, st))
		h.raw(`</div></main></body></html>`)
	})
}
