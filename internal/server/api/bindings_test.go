package api

import (
	"net/http"
	"testing"

	"github.com/ayusman/posepad/internal/emulator"
)

func TestBindingHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	if err := s.Bindings().Set(emulator.ActionJump, "j"); err != nil {
		t.Fatalf("failed to set binding: %v", err)
	}

	rec := do(t, handler, http.MethodGet, "/api/bindings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listBindingsResponse
	decode(t, rec, &response)

	if len(response.Bindings) != len(emulator.Actions()) {
		t.Fatalf("expected %d bindings, got %d", len(emulator.Actions()), len(response.Bindings))
	}

	for _, b := range response.Bindings {
		switch b.Action {
		case emulator.ActionJump:
			if b.Key != "j" || !b.Overridden || b.Default != "space" {
				t.Errorf("Jump binding = %+v, want overridden j over default space", b)
			}
		case emulator.ActionWalk:
			if b.Key != "w" || b.Overridden {
				t.Errorf("Walk binding = %+v, want default w", b)
			}
		}
	}
}

func TestBindingHandler_Update(t *testing.T) {
	s := newTestStore(t)

	var got emulator.Bindings
	handler := NewBindingHandler(s, func(b emulator.Bindings) { got = b })

	t.Run("normalizes and stores the key", func(t *testing.T) {
		rec := do(t, handler, http.MethodPut, "/api/bindings/Sprint", map[string]string{"key": "Control"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var response bindingResponse
		decode(t, rec, &response)
		if response.Key != "ctrl" {
			t.Errorf("expected normalized key ctrl, got %q", response.Key)
		}

		stored, err := s.Bindings().Get(emulator.ActionSprint)
		if err != nil || stored.Key != "ctrl" {
			t.Errorf("stored binding = %+v, %v", stored, err)
		}
		if got[emulator.ActionSprint] != "ctrl" {
			t.Errorf("onChange not called with new bindings, got %v", got)
		}
	})

	t.Run("action names with spaces", func(t *testing.T) {
		rec := do(t, handler, http.MethodPut, "/api/bindings/Go%20left", map[string]string{"key": "left"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if got[emulator.ActionLeft] != "left" {
			t.Errorf("Go left = %q, want left", got[emulator.ActionLeft])
		}
	})

	t.Run("empty key unbinds", func(t *testing.T) {
		rec := do(t, handler, http.MethodPut, "/api/bindings/Jump", map[string]string{"key": ""})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if _, ok := got[emulator.ActionJump]; ok {
			t.Error("Jump should be unbound")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		rec := do(t, handler, http.MethodPut, "/api/bindings/Jump", map[string]string{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rec := do(t, handler, http.MethodPut, "/api/bindings/Jump", "invalid json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		rec := do(t, handler, http.MethodPut, "/api/bindings/Fly", map[string]string{"key": "f"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestBindingHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	if err := s.Bindings().Set(emulator.ActionWalk, "up"); err != nil {
		t.Fatalf("failed to set binding: %v", err)
	}

	rec := do(t, handler, http.MethodDelete, "/api/bindings/Walk", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response bindingResponse
	decode(t, rec, &response)
	if response.Key != "w" || response.Overridden {
		t.Errorf("expected default w after reset, got %+v", response)
	}

	rec = do(t, handler, http.MethodDelete, "/api/bindings/Walk", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d resetting twice, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestBindingHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	rec := do(t, handler, http.MethodPost, "/api/bindings", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}

	rec = do(t, handler, http.MethodPatch, "/api/bindings/Walk", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
