package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/posepad/internal/detector"
	"github.com/ayusman/posepad/internal/gesture"
	"github.com/ayusman/posepad/internal/log"
	"github.com/ayusman/posepad/internal/store"
)

// DefaultTolerance is used for templates created without one.
const DefaultTolerance = 0.5

// TemplateHandler handles HTTP requests for hand template resources. Trained
// templates are kept in sync with the live matcher.
type TemplateHandler struct {
	store   *store.Store
	matcher *gesture.StaticMatcher
	trainer *gesture.Trainer
}

// NewTemplateHandler creates a new TemplateHandler. A nil matcher only
// persists templates.
func NewTemplateHandler(s *store.Store, m *gesture.StaticMatcher) *TemplateHandler {
	return &TemplateHandler{
		store:   s,
		matcher: m,
		trainer: gesture.NewTrainer(),
	}
}

// ServeHTTP routes /api/templates, /api/templates/{id} and
// /api/templates/{id}/samples.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/templates")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 2 && parts[1] == "samples" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.samples(w, r, id)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createTemplateRequest struct {
	Name      string            `json:"name"`
	Label     string            `json:"label"`
	Tolerance float64           `json:"tolerance"`
	Samples   []json.RawMessage `json:"samples"`
}

type updateTemplateRequest struct {
	Name      string            `json:"name"`
	Label     string            `json:"label"`
	Tolerance float64           `json:"tolerance"`
	Samples   []json.RawMessage `json:"samples"`
}

type templateResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
	Samples   int     `json:"samples"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

type sampleResponse struct {
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

func toTemplateResponse(t *store.Template) templateResponse {
	return templateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Label:     t.Label,
		Tolerance: t.Tolerance,
		Samples:   t.Samples,
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

// parseTemplateLabel accepts any hand label except none.
func parseTemplateLabel(s string) (gesture.Label, bool) {
	label, ok := gesture.ParseLabel(s)
	if !ok || label == gesture.None {
		return gesture.None, false
	}
	return label, true
}

// list handles GET /api/templates.
func (h *TemplateHandler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.Templates().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	response := listTemplatesResponse{
		Templates: make([]templateResponse, 0, len(templates)),
	}
	for _, t := range templates {
		response.Templates = append(response.Templates, toTemplateResponse(t))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/templates/{id}.
func (h *TemplateHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

// create handles POST /api/templates. Samples, when present, train the
// template right away.
func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if _, ok := parseTemplateLabel(req.Label); !ok {
		writeError(w, http.StatusBadRequest, "Invalid label")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must not be negative")
		return
	}

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	// Train before touching the store so bad samples leave nothing behind.
	var landmarks []detector.Point3D
	if len(req.Samples) > 0 {
		trained, err := h.trainer.TrainHand(req.Samples)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid samples: "+err.Error())
			return
		}
		landmarks = trained
	}

	t := &store.Template{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Label:     req.Label,
		Tolerance: tolerance,
	}

	if err := h.store.Templates().Create(t); err != nil {
		if _, lookupErr := h.store.Templates().GetByName(req.Name); lookupErr == nil {
			writeError(w, http.StatusConflict, "Template name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	if landmarks != nil {
		if err := h.saveTraining(t, req.Samples, landmarks); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save training")
			return
		}
	}

	writeJSON(w, http.StatusCreated, toTemplateResponse(t))
}

// update handles PUT /api/templates/{id}. Samples, when present, retrain it.
func (h *TemplateHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req updateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Label != "" {
		if _, ok := parseTemplateLabel(req.Label); !ok {
			writeError(w, http.StatusBadRequest, "Invalid label")
			return
		}
		t.Label = req.Label
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance must not be negative")
		return
	}
	if req.Tolerance != 0 {
		t.Tolerance = req.Tolerance
	}

	var landmarks []detector.Point3D
	if len(req.Samples) > 0 {
		trained, err := h.trainer.TrainHand(req.Samples)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid samples: "+err.Error())
			return
		}
		landmarks = trained
	}

	if err := h.store.Templates().Update(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}

	if landmarks != nil {
		if err := h.saveTraining(t, req.Samples, landmarks); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save training")
			return
		}
	} else {
		h.refresh(t)
	}

	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

// delete handles DELETE /api/templates/{id}.
func (h *TemplateHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Templates().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	if h.matcher != nil {
		h.matcher.RemoveTemplate(id)
	}

	w.WriteHeader(http.StatusNoContent)
}

// samples handles GET /api/templates/{id}/samples.
func (h *TemplateHandler) samples(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	samples, err := h.store.Samples().List(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   formatTime(s.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *TemplateHandler) lookup(w http.ResponseWriter, id string) (*store.Template, bool) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return nil, false
	}
	return t, true
}

// saveTraining stores the raw samples and trained landmarks of t and
// registers it with the matcher.
func (h *TemplateHandler) saveTraining(t *store.Template, samples []json.RawMessage, landmarks []detector.Point3D) error {
	if err := h.store.Samples().Replace(t.ID, samples); err != nil {
		return err
	}
	if err := h.store.Templates().SetLandmarks(t.ID, landmarks); err != nil {
		return err
	}
	t.Samples = len(samples)

	log.Info("template trained", "template", t.Name, "label", t.Label, "samples", t.Samples)
	h.refresh(t)
	return nil
}

// refresh reloads t into the matcher after its fields changed.
func (h *TemplateHandler) refresh(t *store.Template) {
	if h.matcher == nil {
		return
	}

	gt, err := h.store.Templates().GestureTemplate(t)
	if err != nil {
		log.Warn("template not loaded into matcher", "template", t.Name, "error", err)
		return
	}
	if len(gt.Landmarks) == 0 {
		return
	}
	h.matcher.AddTemplate(gt)
}
