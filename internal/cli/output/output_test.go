package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want Mode
	}{
		{name: "auto on a pipe", mode: ModeAuto, want: ModeMarkdown},
		{name: "empty on a pipe", mode: "", want: ModeMarkdown},
		{name: "explicit json", mode: ModeJSON, want: ModeJSON},
		{name: "explicit table", mode: ModeTable, want: ModeTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_PlainWhenPiped(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeAuto)

	r.Header("Columns")
	r.Success("ok")
	r.Error("boom")

	assert.Equal(t, "Columns\nok\n", out.String())
	assert.Equal(t, "boom\n", errOut.String())
	assert.Equal(t, "quiet", r.Muted("quiet"))
}

func TestMode_Valid(t *testing.T) {
	for _, m := range Modes {
		assert.True(t, m.Valid(), m)
	}
	assert.True(t, ModeAuto.Valid())
	assert.False(t, Mode("xml").Valid())
}
