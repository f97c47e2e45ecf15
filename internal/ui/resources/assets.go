// Package resources provides static asset handling for the UI server.
package resources

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// StylesheetPath is where the stylesheet is served.
const StylesheetPath = "/static/app.css"

//go:embed static/app.css
var appCSS string

// Assets holds the stylesheet, built once when the server starts.
type Assets struct {
	css     []byte
	version string
}

// Build runs the stylesheet through esbuild. With minify set, whitespace
// and comments are stripped and rules are merged.
func Build(minify bool) (*Assets, error) {
	result := api.Transform(appCSS, api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       "app.css",
		MinifyWhitespace: minify,
		MinifySyntax:     minify,
		LogLevel:         api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		var b strings.Builder
		for _, e := range result.Errors {
			if e.Location != nil {
				fmt.Fprintf(&b, "%s:%d:%d: ", e.Location.File, e.Location.Line, e.Location.Column)
			}
			b.WriteString(e.Text + "\n")
		}
		return nil, fmt.Errorf("esbuild errors:\n%s", b.String())
	}

	sum := sha256.Sum256(result.Code)
	return &Assets{css: result.Code, version: hex.EncodeToString(sum[:4])}, nil
}

// StylesheetURL returns the stylesheet path with a content version, so
// browsers refetch it only when it changes.
func (a *Assets) StylesheetURL() string {
	return StylesheetPath + "?v=" + a.version
}

// Handler serves the built assets.
func (a *Assets) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != StylesheetPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = w.Write(a.css)
	})
}
