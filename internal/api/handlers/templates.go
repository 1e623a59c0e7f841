package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/minutesai/internal/prompt"
)

type TemplateLister interface {
	List() []prompt.Template
}

type TemplateHandler struct {
	templates TemplateLister
}

func NewTemplateHandler(templates TemplateLister) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.templates.List()
	if list == nil {
		list = []prompt.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list, "count": len(list)})
}
