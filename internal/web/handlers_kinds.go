package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/acadimport/internal/core"
	"github.com/JonMunkholm/acadimport/internal/spreadsheet"
)

// KindResponse describes one import kind to the client.
type KindResponse struct {
	Kind            string              `json:"kind"`
	Label           string              `json:"label"`
	IdentifierField string              `json:"identifierField"`
	MaxRows         int                 `json:"maxRows"`
	Fields          []FieldResponse     `json:"fields"`
	Context         []core.ContextField `json:"context,omitempty"`
}

// FieldResponse describes one column of an import kind.
type FieldResponse struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Aliases  []string `json:"aliases,omitempty"`
}

func (s *Server) kindResponse(schema *core.TargetSchema) KindResponse {
	resp := KindResponse{
		Kind:            schema.Kind,
		Label:           schema.Label,
		IdentifierField: schema.IdentifierField,
		MaxRows:         s.service.Validator().Limit(schema),
		Fields:          make([]FieldResponse, len(schema.Fields)),
		Context:         schema.Context,
	}
	for i, f := range schema.Fields {
		resp.Fields[i] = FieldResponse{
			Name:     f.Name,
			Label:    f.DisplayName(),
			Required: f.Required,
			Aliases:  f.Aliases,
		}
	}
	return resp
}

func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.ListKinds()
	out := make([]KindResponse, len(schemas))
	for i, schema := range schemas {
		out[i] = s.kindResponse(schema)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadTemplate serves an .xlsx template. ?samples=1 adds example rows.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	schema, err := core.Lookup(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	withSamples, _ := strconv.ParseBool(r.URL.Query().Get("samples"))

	data, err := spreadsheet.WriteTemplate(schema, withSamples)
	if err != nil {
		respondError(w, r, fmt.Errorf("build %s template: %w", schema.Kind, err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, spreadsheet.TemplateFileName(schema)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	if s.departments == nil {
		respondError(w, r, fmt.Errorf("%w: no backend configured", core.ErrReferenceData))
		return
	}
	depts, err := s.departments.ListDepartments(r.Context())
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", core.ErrReferenceData, err))
		return
	}
	writeJSON(w, http.StatusOK, depts)
}
