package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/pkshell/internal/navigator"
)

// Routes the sidebar links to.
const (
	DatabasesPath = "/api/database/databases/"
	SchemasPath   = "/api/database/schemas/"
	TablesPath    = "/api/database/tables/"
)

// Sidebar renders the database picker and the schema tree.
func Sidebar(view navigator.Sidebar) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<aside id="`, SidebarID, `" class="sidebar">`)
		h.raw(`<header class="sidebar__prompt">`)
		h.text(view.Prompt)
		h.raw(`</header>`)

		h.raw(`<section class="sidebar__section sidebar__databases">`)
		items(h, view.Databases, DatabasesPath, "db")
		h.raw(`</section>`)

		h.raw(`<section class="sidebar__section sidebar__schemas">`)
		if view.Schemas.Display == navigator.ShowHidden {
			if view.Schemas.Message != "" {
				message(h, view.Schemas.Display, view.Schemas.Message)
			}
		} else {
			h.raw(`<h2>`)
			h.text(view.Schemas.Heading)
			h.raw(`</h2>`)
			if view.Schemas.Display != navigator.ShowList {
				message(h, view.Schemas.Display, view.Schemas.Message)
			}
			h.raw(`<ul class="tree">`)
			for _, n := range view.Nodes {
				schemaNode(h, n)
			}
			h.raw(`</ul>`)
		}
		h.raw(`</section></aside>`)
	})
}

func schemaNode(h *html, n navigator.SchemaNode) {
	marker := "▸"
	if n.Expanded {
		marker = "▾"
	}
	h.raw(`<li class="`, classes("node", when(n.Expanded, "node--expanded")), `">`)
	h.raw(`<button type="button" data-on:click="`)
	h.text(action(SchemasPath, n.Name))
	h.raw(`">`, marker, ` `)
	h.text(n.Name)
	h.raw(`</button>`)
	if t := n.Tables; t != nil {
		h.raw(`<h3>`)
		h.text(t.Heading)
		h.raw(`</h3>`)
		items(h, *t, TablesPath, "table")
	}
	h.raw(`</li>`)
}

// items renders a section as a message or a clickable list.
func items(h *html, s navigator.Section, path, kind string) {
	if s.Display != navigator.ShowList {
		message(h, s.Display, s.Message)
		return
	}
	h.raw(`<ul class="list list--`, kind, `">`)
	for _, it := range s.Items {
		h.raw(`<li class="`, classes("item", when(it.Selected, "item--selected")), `">`)
		h.raw(`<button type="button" data-on:click="`)
		h.text(action(path, it.Name))
		h.raw(`">`)
		h.text(it.Name)
		h.raw(`</button></li>`)
	}
	h.raw(`</ul>`)
}

func message(h *html, d navigator.Display, msg string) {
	h.raw(`<p class="status status--`, d.String(), `">`)
	h.text(msg)
	h.raw(`</p>`)
}

// Detail renders the columns and indexes of the focused table. A nil detail
// renders the empty placeholder so later patches have a target.
func Detail(d *navigator.TableDetail) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<section id="`, DetailID, `" class="detail">`)
		if d == nil {
			h.raw(`</section>`)
			return
		}
		h.raw(`<h2>`)
		h.text(d.Name)
		h.raw(`</h2>`)

		h.raw(`<h3>`)
		h.text(d.ColumnsHeading)
		h.raw(`</h3><table class="grid"><thead><tr><th>name</th><th>type</th><th>len</th><th>not null</th><th>default</th></tr></thead><tbody>`)
		for _, c := range d.Columns {
			h.raw(`<tr><td>`)
			h.text(c.Name)
			h.raw(`</td><td>`)
			h.text(c.TypeID.String())
			h.raw(`</td><td>`, fmt.Sprint(c.Len), `</td><td>`, check(c.NotNull), `</td><td>`, check(c.HasDefault), `</td></tr>`)
		}
		h.raw(`</tbody></table>`)

		if len(d.Indexes) > 0 {
			h.raw(`<h3>`)
			h.text(d.IndexesHeading)
			h.raw(`</h3><table class="grid"><thead><tr><th>name</th><th>kind</th><th>columns</th><th>primary</th></tr></thead><tbody>`)
			for _, x := range d.Indexes {
				names := make([]string, 0, len(x.Columns()))
				for _, pos := range x.Columns() {
					if pos >= 0 && pos < len(d.Columns) {
						names = append(names, d.Columns[pos].Name)
					} else {
						names = append(names, fmt.Sprint(pos))
					}
				}
				h.raw(`<tr><td>`)
				h.text(x.Name)
				h.raw(`</td><td>`)
				h.text(x.Kind.String())
				h.raw(`</td><td>`)
				h.text(strings.Join(names, ", "))
				h.raw(`</td><td>`, check(x.IsPrimary), `</td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		h.raw(`</section>`)
	})
}
