package routes

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"html"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"sync"

	"table-call/internal/dashboard"
	"table-call/internal/tableview"
)

// Assets computes subresource integrity for the files served under /assets/.
type Assets struct {
	fs  fs.FS
	sri sync.Map // map[string]string, keyed by src
}

// NewAssets serves integrity for fsys, which is rooted at the assets dir.
func NewAssets(fsys fs.FS) *Assets {
	return &Assets{fs: fsys}
}

// computeSRI computes the sha384 SRI of a local asset. Sources outside
// /assets/ have none.
func (a *Assets) computeSRI(src string) (string, error) {
	if !strings.HasPrefix(src, "/assets/") {
		return "", nil
	}

	f, err := a.fs.Open(strings.TrimPrefix(src, "/assets/"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha512.New384()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "sha384-" + base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// integrity returns the cached SRI attributes for src, or nothing for
// sources that cannot be hashed.
func (a *Assets) integrity(src string) string {
	sri, ok := a.sri.Load(src)
	if !ok {
		v, err := a.computeSRI(src)
		if err != nil || v == "" {
			return ""
		}
		sri, _ = a.sri.LoadOrStore(src, v)
	}
	return fmt.Sprintf(` integrity="%s" crossorigin="anonymous"`, html.EscapeString(sri.(string)))
}

// ScriptTag renders a script element for src, pinned by integrity when local.
func (a *Assets) ScriptTag(src string) template.HTML {
	return template.HTML(fmt.Sprintf(`<script src="%s"%s></script>`, html.EscapeString(src), a.integrity(src)))
}

// StyleTag renders a stylesheet link for href.
func (a *Assets) StyleTag(href string) template.HTML {
	return template.HTML(fmt.Sprintf(`<link rel="stylesheet" href="%s"%s>`, html.EscapeString(href), a.integrity(href)))
}

// TemplateFuncs returns a FuncMap with template helpers for routes templates.
func TemplateFuncs(assets *Assets) template.FuncMap {
	return template.FuncMap{
		"script_tag": assets.ScriptTag,
		"style_tag":  assets.StyleTag,
		"ordinal":    tableview.Ordinal,
		"elapsed":    dashboard.FormatElapsed,
	}
}
