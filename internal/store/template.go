package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/posepad/internal/detector"
)

// Template is a trained hand pose stored in the database.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Tolerance float64   `json:"tolerance"`
	Samples   int       `json:"samples"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateRepository provides CRUD operations for templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

const templateColumns = `id, name, label, tolerance, samples, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	t := &Template{}
	err := row.Scan(&t.ID, &t.Name, &t.Label, &t.Tolerance, &t.Samples, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Create inserts a new template.
func (r *TemplateRepository) Create(t *Template) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Label, t.Tolerance, t.Samples, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a template by its ID.
func (r *TemplateRepository) GetByID(id string) (*Template, error) {
	return scanTemplate(r.db.QueryRow(`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
}

// GetByName retrieves a template by its name.
func (r *TemplateRepository) GetByName(name string) (*Template, error) {
	return scanTemplate(r.db.QueryRow(`SELECT `+templateColumns+` FROM templates WHERE name = ?`, name))
}

// List retrieves all templates, newest first.
func (r *TemplateRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(`SELECT ` + templateColumns + ` FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// Update saves name, label and tolerance of an existing template.
func (r *TemplateRepository) Update(t *Template) error {
	t.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE templates SET name = ?, label = ?, tolerance = ?, samples = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Label, t.Tolerance, t.Samples, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

// Delete removes a template and, by cascade, its landmarks and samples.
func (r *TemplateRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

// SetLandmarks replaces the stored landmarks of a template.
func (r *TemplateRepository) SetLandmarks(id string, points []detector.Point3D) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM templates WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM template_landmarks WHERE template_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO template_landmarks (template_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.Exec(id, i, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLandmarks returns the stored landmarks of a template in index order.
// A template without landmarks yields an empty slice.
func (r *TemplateRepository) GetLandmarks(id string) ([]detector.Point3D, error) {
	rows, err := r.db.Query(
		`SELECT x, y, z FROM template_landmarks WHERE template_id = ? ORDER BY landmark_index`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []detector.Point3D
	for rows.Next() {
		var p detector.Point3D
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, rows.Err()
}
