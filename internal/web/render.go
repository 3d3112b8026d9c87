package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"archsite/internal/content"
)

//go:embed templates static
var assets embed.FS

const langCookie = "archsite_lang"

// renderer holds one template set per page, each parsed with its layout.
type renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"paras":  paragraphs,
	"date":   formatDate,
	"join":   strings.Join,
	"lines":  func(v []string) string { return strings.Join(v, "\n") },
	"bi":     bilingual(false),
	"bitext": bilingual(true),
	"kb":     byteSize,
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: map[string]*template.Template{}}
	for _, area := range []string{"site", "admin"} {
		layout := "templates/" + area + "/layout.html"
		files, err := fs.Glob(assets, "templates/"+area+"/*.html")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f == layout {
				continue
			}
			name := area + "/" + strings.TrimSuffix(path.Base(f), ".html")
			t, err := template.New(path.Base(f)).Funcs(funcs).ParseFS(assets, layout, f)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", f, err)
			}
			r.pages[name] = t
		}
	}
	return r, nil
}

// render buffers the page so a template error still yields a clean 500.
func (rd *renderer) render(w http.ResponseWriter, status int, name string, data any) error {
	t, ok := rd.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// siteInfo is the per-request copy of the site settings.
type siteInfo struct {
	Name         content.Localized
	BaseURL      string
	ContactEmail string
}

// view is the data passed to public templates.
type view struct {
	Site   siteInfo
	Locale content.Locale
	Path   string // path after the locale segment, for the language switcher
	Title  string
	Data   any
}

func (v view) T(key string) string { return translate(v.Locale, key) }
func (v view) L(t content.Localized) string { return t.Get(v.Locale) }
func (v view) Dir() string { return v.Locale.Dir() }
func (v view) URL(p string) string { return "/" + string(v.Locale) + p }
func (v view) SwitchURL() string { return "/" + string(v.Locale.Other()) + v.Path }
func (v view) SiteName() string { return v.Site.Name.Get(v.Locale) }
func (v view) Year() int { return time.Now().Year() }
func (v view) Active(p string) bool { return v.Path == p || (p != "/" && strings.HasPrefix(v.Path, p+"/")) }
func (v view) Canonical() string { return strings.TrimSuffix(v.Site.BaseURL, "/") + v.URL(v.Path) }
func (v view) Alternate(l content.Locale) string { return strings.TrimSuffix(v.Site.BaseURL, "/") + "/" + string(l) + v.Path }

// adminView is the data passed to admin templates.
type adminView struct {
	Title  string
	User   string
	Nav    string
	Notice string
	Error  string
	Fields map[string]string
	Data   any
}

// Err returns the validation message for field, if any.
func (v adminView) Err(field string) string { return v.Fields[field] }

// biField feeds the "bilingual" admin partial.
type biField struct {
	Name  string
	Label string
	Value content.Localized
	Err   string
	Multi bool
}

func bilingual(multi bool) func(name, label string, v content.Localized, fields map[string]string) biField {
	return func(name, label string, v content.Localized, fields map[string]string) biField {
		msg := fields[name+".en"]
		if msg == "" {
			msg = fields[name]
		}
		return biField{Name: name, Label: label, Value: v, Err: msg, Multi: multi}
	}
}

func byteSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// paragraphs splits plain text on blank lines.
func paragraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatDate(t any) string {
	switch v := t.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	}
	return ""
}
