package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample is one raw recorded sample of a template.
type Sample struct {
	ID          int64           `json:"id"`
	TemplateID  string          `json:"template_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository stores raw template samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Replace swaps the samples of a template for the given ones and updates its
// sample count, in one transaction.
func (r *SampleRepository) Replace(templateID string, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE templates SET samples = ?, updated_at = ? WHERE id = ?`,
		len(samples), time.Now(), templateID)
	if err != nil {
		return err
	}
	if err := affected(result); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM template_samples WHERE template_id = ?`, templateID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO template_samples (template_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, data := range samples {
		if _, err := stmt.Exec(templateID, i, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List returns the samples of a template in recording order.
func (r *SampleRepository) List(templateID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, template_id, sample_index, data, created_at
		 FROM template_samples
		 WHERE template_id = ?
		 ORDER BY sample_index`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.TemplateID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// Raw returns just the sample payloads of a template, ready for training.
func (r *SampleRepository) Raw(templateID string) ([]json.RawMessage, error) {
	samples, err := r.List(templateID)
	if err != nil {
		return nil, err
	}

	raw := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		raw[i] = s.Data
	}
	return raw, nil
}
