package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/posepad/internal/emulator"
)

// Binding is a stored key binding override for one logical action.
type Binding struct {
	Action    emulator.Action `json:"action"`
	Key       string          `json:"key"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BindingRepository persists key binding overrides.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

// Set stores the key for an action, replacing any previous override.
// An empty key records the action as explicitly unbound.
func (r *BindingRepository) Set(action emulator.Action, key string) error {
	_, err := r.db.Exec(
		`INSERT INTO bindings (action, key, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(action) DO UPDATE SET key = excluded.key, updated_at = excluded.updated_at`,
		string(action), key, time.Now(),
	)
	return err
}

// Get returns the override for an action.
func (r *BindingRepository) Get(action emulator.Action) (*Binding, error) {
	b := &Binding{}
	var name string
	err := r.db.QueryRow(
		`SELECT action, key, updated_at FROM bindings WHERE action = ?`,
		string(action),
	).Scan(&name, &b.Key, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Action = emulator.Action(name)
	return b, nil
}

// List returns every stored override ordered by action name.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(`SELECT action, key, updated_at FROM bindings ORDER BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		var name string
		if err := rows.Scan(&name, &b.Key, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Action = emulator.Action(name)
		bindings = append(bindings, b)
	}

	return bindings, rows.Err()
}

// Delete removes the override for an action so its default applies again.
func (r *BindingRepository) Delete(action emulator.Action) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE action = ?`, string(action))
	if err != nil {
		return err
	}
	return affected(result)
}

// Overrides returns the stored overrides as a map suitable for Bindings.Merge.
func (r *BindingRepository) Overrides() (map[emulator.Action]string, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}

	overrides := make(map[emulator.Action]string, len(list))
	for _, b := range list {
		overrides[b.Action] = b.Key
	}
	return overrides, nil
}

// Load returns defaults with the stored overrides applied.
func (r *BindingRepository) Load(defaults emulator.Bindings) (emulator.Bindings, error) {
	overrides, err := r.Overrides()
	if err != nil {
		return nil, err
	}
	return defaults.Merge(overrides), nil
}
