package httpapi

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
)

//go:embed web/index.html web/static
var webFS embed.FS

var indexTmpl = template.Must(template.ParseFS(webFS, "web/index.html"))

type indexData struct {
	Title    string
	Ready    bool
	Backend  string
	Features []string
}

func (a *api) index(w http.ResponseWriter, r *http.Request) {
	st := a.svc.Status()
	data := indexData{Title: "OCR Workspace", Ready: a.svc.Ready(), Backend: st.Backend}
	for name, on := range a.deps.Features {
		if on {
			data.Features = append(data.Features, name)
		}
	}
	sort.Strings(data.Features)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		reqLogger().Error().Err(err).Msg("render index")
	}
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
