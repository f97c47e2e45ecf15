// Package components renders the web front end as templ components.
//
// Every component that can be patched over SSE has a stable element id, so
// datastar can morph it in place.
package components

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Element ids targeted by SSE patches.
const (
	SidebarID = "sidebar"
	DetailID  = "detail"
	ResultsID = "results"
)

// DatastarScript is the datastar client bundle.
const DatastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// html writes markup and keeps the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

// text writes s escaped for element content and attribute values.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// component adapts a writer func to templ.Component.
func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

// action returns a datastar GET action for path with name as its last
// segment.
func action(path, name string) string {
	return "@get('" + path + url.PathEscape(name) + "')"
}

func classes(base string, extra ...string) string {
	out := []string{base}
	for _, e := range extra {
		if e != "" {
			out = append(out, e)
		}
	}
	return strings.Join(out, " ")
}

func when(ok bool, class string) string {
	if ok {
		return class
	}
	return ""
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(v)
	}
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}
