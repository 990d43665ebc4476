package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sqlmerr/twotty/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticAssets embed.FS

const dateLayout = "2006-01-02 15:04:05"

var pageNames = []string{"login", "register", "profile", "settings", "error"}

// Renderer renders the embedded page templates, each wrapped in the layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() *Renderer {
	funcs := template.FuncMap{
		"date":   func(t time.Time) string { return t.Local().Format(dateLayout) },
		"avatar": func(u models.User) string { return u.AvatarURL() },
		"maxlen": func() int { return models.MaxPostLength },
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		r.pages[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return r
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

func staticFS() fs.FS {
	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
