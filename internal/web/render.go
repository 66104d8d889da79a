package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutName = "base.html"

// standalone pages carry their own <html> and skip the layout.
var standalone = map[string]bool{
	"login": true,
}

// pageData is passed to every template.
type pageData struct {
	Title     string
	Session   *session.Data
	CSRFToken string
	Flashes   []session.Flash
	Data      map[string]any
}

type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"levelClass": func(level models.EmergencyLevel) string {
			return "level-" + string(level)
		},
		"datetime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04")
		},
		"upper": strings.ToUpper,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	r := &renderer{templates: make(map[string]*template.Template)}
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || file == layoutName {
			continue
		}
		name := strings.TrimSuffix(file, ".html")

		var tmpl *template.Template
		if standalone[name] {
			tmpl, err = template.New(file).Funcs(funcs).ParseFS(templateFS, "templates/"+file)
		} else {
			tmpl, err = template.New(layoutName).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutName, "templates/"+file)
		}
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// render executes into a buffer first so a template failure never leaves a
// half-written page behind.
func (r *renderer) render(c *gin.Context, status int, name string, data *pageData) {
	tmpl, ok := r.templates[name]
	if !ok {
		c.String(http.StatusInternalServerError, "template %q not found", name)
		return
	}
	root := layoutName
	if standalone[name] {
		root = name + ".html"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, root, data); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "template error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
