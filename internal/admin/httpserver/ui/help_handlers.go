package ui

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/help"
	helptpl "github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/help"
)

// HelpPage renders the help centre. Without a slug the first document is shown.
func (h *Handlers) HelpPage(w http.ResponseWriter, r *http.Request) {
	data := helptpl.PageData{
		Docs:    h.help.List(),
		BaseURL: consolePath(r.Context(), "/help"),
	}

	slug := chi.URLParam(r, "slug")
	switch {
	case slug != "":
		doc, err := h.help.Get(slug)
		if errors.Is(err, help.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		data.Current = &doc
	case len(data.Docs) > 0:
		data.Current = &data.Docs[0]
	}
	render(w, r, helptpl.Index(data), http.StatusOK)
}
