package handlers

import (
	"embed"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/quicklist/internal/format"
	"github.com/ytakahashi/quicklist/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer renders the embedded page templates for echo.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer(loc *time.Location) (*TemplateRenderer, error) {
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"itemDate":    func(item models.ShoppingItem) string { return format.ItemDate(item, loc) },
		"queryEscape": url.QueryEscape,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{templates: tmpl}, nil
}

func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// String renders name into a string for SSE patches.
func (t *TemplateRenderer) String(name string, data any) (string, error) {
	var b strings.Builder
	if err := t.templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
