package components

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/querypane"
)

// ExecutePath receives the editor text as the sql signal.
const ExecutePath = "/api/query/execute"

// QueryPane renders the editor with the results below it.
func QueryPane(tr *locale.Translator, st querypane.State) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<section id="query" class="query">`)
		h.raw(`<h2>`)
		h.text(tr.T(locale.QueryHeading))
		h.raw(`</h2>`)
		h.raw(`<textarea class="query__editor" rows="8" spellcheck="false" data-bind:sql>`)
		h.text(st.Text)
		h.raw(`</textarea>`)
		h.raw(`<div class="query__actions">`)
		h.raw(`<button type="button" data-indicator:running data-attr:disabled="$running" data-on:click="@post('`, ExecutePath, `')">`)
		h.text(tr.T(locale.QueryRun))
		h.raw(`</button>`)
		h.raw(`<span class="status status--loading" data-show="$running">`)
		h.text(tr.T(locale.QueryRunning))
		h.raw(`</span></div>`)
		h.render(ctx, Results(tr, st, ""))
		h.raw(`</section>`)
	})
}

// Results renders the last result and, above it, the last error or notice.
// A failed query keeps the previous result on screen.
func Results(tr *locale.Translator, st querypane.State, notice string) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.raw(`<div id="`, ResultsID, `" class="results">`)
		for _, msg := range []string{notice, st.LastError} {
			if msg == "" {
				continue
			}
			h.raw(`<p class="status status--error">`)
			h.text(msg)
			h.raw(`</p>`)
		}

		res := st.LastResult
		switch {
		case res == nil:
			h.raw(`<p class="status status--empty">`)
			h.text(tr.T(locale.QueryNoResults))
			h.raw(`</p>`)
		case !res.Tabular():
			var buf bytes.Buffer
			if err := json.Indent(&buf, res.Raw, "", "  "); err != nil {
				buf.Reset()
				buf.Write(res.Raw)
			}
			h.raw(`<pre class="results__raw">`)
			h.text(buf.String())
			h.raw(`</pre>`)
		default:
			h.raw(`<h3>`)
			h.text(tr.T(locale.QueryResults))
			h.raw(`</h3><p class="results__meta">`)
			h.text(tr.T(locale.RowsElapsed, len(res.Rows), st.Elapsed.Round(time.Millisecond).String()))
			h.raw(`</p><table class="grid"><thead><tr>`)
			for _, c := range res.Columns {
				h.raw(`<th>`)
				h.text(c)
				h.raw(`</th>`)
			}
			h.raw(`</tr></thead><tbody>`)
			for _, row := range res.Rows {
				h.raw(`<tr>`)
				for i := range res.Columns {
					var v any
					if i < len(row) {
						v = row[i]
					}
					h.raw(`<td>`)
					h.text(cell(v))
					h.raw(`</td>`)
				}
				h.raw(`</tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		h.raw(`</div>`)
	})
}
