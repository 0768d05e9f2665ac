// internal/imaging/resolver.go
package imaging

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Mode selects how local image references in campaign HTML are rewritten.
// It is fixed at startup; one invocation never mixes modes.
type Mode string

const (
	// ModeInline replaces local references with base64 data URIs so the
	// message survives clients that block remote image loading.
	ModeInline Mode = "inline"
	// ModeExternal rewrites local references to absolute URLs under the
	// configured base URL, keeping payloads small.
	ModeExternal Mode = "external"
)

var imgSrcPattern = regexp.MustCompile(`<img\s+[^>]*src=["']([^"']+)["'][^>]*>`)

var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

// Resolver rewrites image references in campaign HTML for the deployment
// target. Construct once at startup and share.
type Resolver struct {
	Mode      Mode
	StaticDir string // filesystem root for static assets
	BaseURL   string // no trailing slash
	StaticURL string // externally reachable static root
	Log       *zap.Logger
}

// Embed processes every <img> tag in html according to the configured
// mode. References that are already absolute (http...) or inline (data:)
// pass through unchanged, which makes re-embedding a no-op.
func (r *Resolver) Embed(html string) string {
	switch r.Mode {
	case ModeInline:
		return r.inline(html)
	case ModeExternal:
		return r.external(html)
	default:
		return html
	}
}

func (r *Resolver) inline(html string) string {
	return imgSrcPattern.ReplaceAllStringFunc(html, func(tag string) string {
		src := imgSrcPattern.FindStringSubmatch(tag)[1]
		if strings.HasPrefix(src, "data:") || strings.HasPrefix(src, "http") {
			return tag
		}

		path, ok := r.resolvePath(src)
		if !ok {
			// Best-effort: unresolvable references are left untouched.
			return tag
		}
		dataURI, err := r.fileToDataURI(path)
		if err != nil {
			r.Log.Warn("could not inline image", zap.String("src", src), zap.Error(err))
			return tag
		}
		return strings.Replace(tag, src, dataURI, 1)
	})
}

func (r *Resolver) external(html string) string {
	return imgSrcPattern.ReplaceAllStringFunc(html, func(tag string) string {
		src := imgSrcPattern.FindStringSubmatch(tag)[1]
		if strings.HasPrefix(src, "http") || strings.HasPrefix(src, "data:") {
			return tag
		}

		var url string
		switch {
		case strings.HasPrefix(src, "/static/"):
			url = r.BaseURL + src
		case strings.HasPrefix(src, "static/"):
			url = r.BaseURL + "/" + src
		default:
			// Bare filenames are assumed to live under the images folder.
			url = r.StaticURL + "/images/" + src
		}
		return strings.Replace(tag, src, url, 1)
	})
}

// resolvePath maps an src attribute to an existing file under the static
// root, trying the same candidate locations the upload flow writes to.
func (r *Resolver) resolvePath(src string) (string, bool) {
	clean := strings.TrimPrefix(src, "/")
	clean = strings.TrimPrefix(clean, "static/")

	candidates := []string{
		src,
		filepath.Join(r.StaticDir, clean),
		filepath.Join(r.StaticDir, "images", clean),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func (r *Resolver) fileToDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// AssetURL returns the mode-appropriate reference for a single static
// image: a data URI in inline mode, an absolute URL otherwise. Used when a
// campaign carries a dynamic asset placeholder.
func (r *Resolver) AssetURL(filename string) string {
	if r.Mode == ModeInline {
		path := filepath.Join(r.StaticDir, "images", filename)
		if uri, err := r.fileToDataURI(path); err == nil {
			return uri
		}
		return ""
	}
	return r.StaticURL + "/images/" + filename
}
