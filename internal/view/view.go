package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/auth"
	"github.com/Skotchmaster/revoshop/internal/middleware/csrf"
	"github.com/Skotchmaster/revoshop/internal/middleware/session"
)

//go:embed templates/*.html templates/pages/*.html
var templatesFS embed.FS

// Page is the data every page template receives. Data holds the
// page-specific view model.
type Page struct {
	Title     string
	User      *auth.SessionClaims
	CSRF      string
	CartCount int
	Query     string
	Notice    string
	Error     string
	Data      any
}

const unauthorizedMessage = "You are not authorized to view that page."

func (p *Page) fill(c echo.Context) {
	if c == nil {
		return
	}
	if p.User == nil {
		p.User = session.Current(c)
	}
	if p.CSRF == "" {
		p.CSRF = csrf.Token(c)
	}
	if p.Error == "" && c.QueryParam("error") == "unauthorized" {
		p.Error = unauthorizedMessage
	}
}

type Renderer struct {
	pages map[string]*template.Template
}

// New parses the layout once and every page on top of its own clone.
func New() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templatesFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templatesFS, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		r.pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return r, nil
}

func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	switch p := data.(type) {
	case *Page:
		p.fill(c)
	case nil:
		p2 := &Page{}
		p2.fill(c)
		data = p2
	}
	return t.ExecuteTemplate(w, "layout", data)
}
