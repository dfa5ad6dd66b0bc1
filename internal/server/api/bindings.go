package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/posepad/internal/emulator"
	"github.com/ayusman/posepad/internal/keyboard"
	"github.com/ayusman/posepad/internal/log"
	"github.com/ayusman/posepad/internal/store"
)

// BindingHandler handles HTTP requests for key binding resources.
type BindingHandler struct {
	store    *store.Store
	onChange func(emulator.Bindings)
}

// NewBindingHandler creates a new BindingHandler. onChange, when not nil, is
// called with the effective bindings after every successful change.
func NewBindingHandler(s *store.Store, onChange func(emulator.Bindings)) *BindingHandler {
	return &BindingHandler{store: s, onChange: onChange}
}

// ServeHTTP routes /api/bindings and /api/bindings/{action}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	action := emulator.Action(path)
	if !action.Valid() {
		writeError(w, http.StatusNotFound, "Unknown action")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, action)
	case http.MethodPut:
		h.update(w, r, action)
	case http.MethodDelete:
		h.delete(w, r, action)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type updateBindingRequest struct {
	Key *string `json:"key"`
}

type bindingResponse struct {
	Action     emulator.Action `json:"action"`
	Key        string          `json:"key"`
	Default    string          `json:"default"`
	Overridden bool            `json:"overridden"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

// effective returns the merged bindings and the raw overrides.
func (h *BindingHandler) effective() (emulator.Bindings, map[emulator.Action]string, error) {
	overrides, err := h.store.Bindings().Overrides()
	if err != nil {
		return nil, nil, err
	}
	return emulator.DefaultBindings().Merge(overrides), overrides, nil
}

func toBindingResponse(a emulator.Action, b emulator.Bindings, overrides map[emulator.Action]string) bindingResponse {
	_, overridden := overrides[a]
	return bindingResponse{
		Action:     a,
		Key:        b[a],
		Default:    emulator.DefaultBindings()[a],
		Overridden: overridden,
	}
}

// list handles GET /api/bindings and returns every action with its key.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	b, overrides, err := h.effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(emulator.Actions())),
	}
	for _, a := range emulator.Actions() {
		response.Bindings = append(response.Bindings, toBindingResponse(a, b, overrides))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{action}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, a emulator.Action) {
	b, overrides, err := h.effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bindings")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(a, b, overrides))
}

// update handles PUT /api/bindings/{action}. An empty key unbinds the action.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, a emulator.Action) {
	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Key == nil {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	key := ""
	if strings.TrimSpace(*req.Key) != "" {
		normalized, err := keyboard.Normalize(*req.Key)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid key")
			return
		}
		key = normalized
	}

	if err := h.store.Bindings().Set(a, key); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save binding")
		return
	}

	h.respondChanged(w, a)
}

// delete handles DELETE /api/bindings/{action}, restoring the default key.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, a emulator.Action) {
	if err := h.store.Bindings().Delete(a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding is not overridden")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	h.respondChanged(w, a)
}

func (h *BindingHandler) respondChanged(w http.ResponseWriter, a emulator.Action) {
	b, overrides, err := h.effective()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bindings")
		return
	}

	log.Info("binding changed", "action", a, "key", b[a])
	if h.onChange != nil {
		h.onChange(b)
	}

	writeJSON(w, http.StatusOK, toBindingResponse(a, b, overrides))
}
