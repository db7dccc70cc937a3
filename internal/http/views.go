package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"calcweb/internal/domain"
	"calcweb/internal/service/auth"
	"calcweb/internal/service/calculator"
	"calcweb/internal/service/records"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "calculator", "records"}

type views struct {
	pages map[string]*template.Template
}

// page carries what the layout needs.
type page struct {
	Title         string
	Active        string
	Authenticated bool
}

type loginView struct {
	page
	Form auth.Form
}

type calculatorView struct {
	page
	State         calculator.State
	Operations    []domain.OperationSpec
	SingleOperand []domain.OperationSpec
}

type recordsView struct {
	page
	State     records.State
	Pager     records.Pager
	PageSizes []int
}

func loadViews() (*views, error) {
	funcs := template.FuncMap{
		"currency": domain.FormatCurrency,
		"pageURL":  pageURL,
	}
	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

// render executes into a buffer so a template error never leaves a half
// written page.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	tmpl, ok := s.views.pages[name]
	if !ok {
		http.Error(w, "unknown view", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.WithError(err).WithField("view", name).Error("render failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) calculatorView(flow *calculator.Flow) calculatorView {
	ops := flow.Catalog().Operations()
	var single []domain.OperationSpec
	for _, op := range ops {
		if !op.NeedsSecondOperand() {
			single = append(single, op)
		}
	}
	return calculatorView{
		page:          page{Title: "Calculator", Active: "calculator", Authenticated: true},
		State:         flow.State(),
		Operations:    ops,
		SingleOperand: single,
	}
}

func (s *Server) recordsView() recordsView {
	state := s.records.Snapshot()
	return recordsView{
		page:      page{Title: "Records", Active: "records", Authenticated: true},
		State:     state,
		Pager:     records.Window(state.Page, state.TotalPages),
		PageSizes: domain.PageSizes,
	}
}

func pageURL(v recordsView, n int) string {
	return recordsURL(n, v.State.PageSize, v.State.Search)
}
