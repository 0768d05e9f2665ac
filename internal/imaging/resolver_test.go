package imaging

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T, mode Mode) *Resolver {
	t.Helper()
	staticDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "images"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(staticDir, "images", "logo.png"),
		[]byte("fake-png-bytes"),
		0o644,
	))
	return &Resolver{
		Mode:      mode,
		StaticDir: staticDir,
		BaseURL:   "https://mail.example.com",
		StaticURL: "https://mail.example.com/static",
		Log:       zap.NewNop(),
	}
}

func TestInlineModeEmbedsLocalImage(t *testing.T) {
	r := newTestResolver(t, ModeInline)

	html := `<p>hi</p><img src="logo.png" alt="logo">`
	out := r.Embed(html)

	expected := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	assert.Contains(t, out, expected)
	assert.NotContains(t, out, `src="logo.png"`)
}

func TestInlineModeLeavesUnresolvableUntouched(t *testing.T) {
	r := newTestResolver(t, ModeInline)

	html := `<img src="missing.png">`
	assert.Equal(t, html, r.Embed(html))
}

func TestExternalModeRewritesLocalRefs(t *testing.T) {
	r := newTestResolver(t, ModeExternal)

	cases := map[string]string{
		`<img src="/static/images/logo.png">`: `<img src="https://mail.example.com/static/images/logo.png">`,
		`<img src="static/images/logo.png">`:  `<img src="https://mail.example.com/static/images/logo.png">`,
		`<img src="logo.png">`:                `<img src="https://mail.example.com/static/images/logo.png">`,
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Embed(in))
	}
}

func TestPassThroughIsIdempotent(t *testing.T) {
	for _, mode := range []Mode{ModeInline, ModeExternal} {
		r := newTestResolver(t, mode)

		html := `<img src="data:image/png;base64,QUJD"><img src="https://cdn.example.com/x.png">`
		once := r.Embed(html)
		assert.Equal(t, html, once)
		assert.Equal(t, once, r.Embed(once))
	}
}

func TestMimeInference(t *testing.T) {
	r := newTestResolver(t, ModeInline)
	require.NoError(t, os.WriteFile(filepath.Join(r.StaticDir, "images", "pic.webp"), []byte("w"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(r.StaticDir, "images", "pic.unknown"), []byte("u"), 0o644))

	out := r.Embed(`<img src="pic.webp">`)
	assert.Contains(t, out, "data:image/webp;base64,")

	// Unknown extensions default to jpeg.
	out = r.Embed(`<img src="pic.unknown">`)
	assert.Contains(t, out, "data:image/jpeg;base64,")
}

func TestAssetURLByMode(t *testing.T) {
	inline := newTestResolver(t, ModeInline)
	assert.Contains(t, inline.AssetURL("logo.png"), "data:image/png;base64,")
	assert.Equal(t, "", inline.AssetURL("missing.png"))

	external := newTestResolver(t, ModeExternal)
	assert.Equal(t, "https://mail.example.com/static/images/logo.png", external.AssetURL("logo.png"))
}
