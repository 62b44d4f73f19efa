package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/cloud2mesh/internal/centroid"
	"github.com/banshee-data/cloud2mesh/internal/cloud"
	"github.com/banshee-data/cloud2mesh/internal/geom"
	"github.com/banshee-data/cloud2mesh/internal/params"
	"github.com/banshee-data/cloud2mesh/internal/slicer"
	"github.com/banshee-data/cloud2mesh/internal/stage"
	"github.com/banshee-data/cloud2mesh/internal/trace"
)

// ErrNotFound marks a lookup for a row that does not exist.
var ErrNotFound = errors.New("not found")

// ProjectRecord is the stored form of a project's identity and parameters.
type ProjectRecord struct {
	ID        string
	Name      string
	Config    *params.Config
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveProject inserts or updates the project row.
func (s *Store) SaveProject(rec ProjectRecord) error {
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.Exec(`
		INSERT INTO projects (id, name, config) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config = excluded.config,
			updated_at = CURRENT_TIMESTAMP
	`, rec.ID, rec.Name, string(cfg))
	if err != nil {
		return fmt.Errorf("save project %s: %w", rec.ID, err)
	}
	return nil
}

// GetProject loads one project row by ID.
func (s *Store) GetProject(id string) (*ProjectRecord, error) {
	var rec ProjectRecord
	var cfg string
	err := s.QueryRow(`
		SELECT id, name, config, created_at, updated_at FROM projects WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Name, &cfg, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	rec.Config = &params.Config{}
	if err := json.Unmarshal([]byte(cfg), rec.Config); err != nil {
		return nil, fmt.Errorf("parse config of project %s: %w", id, err)
	}
	return &rec, nil
}

// ListProjects returns all project rows, most recently updated first.
func (s *Store) ListProjects() ([]ProjectRecord, error) {
	rows, err := s.Query(`
		SELECT id, name, config, created_at, updated_at
		FROM projects ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRecord
	for rows.Next() {
		var rec ProjectRecord
		var cfg string
		if err := rows.Scan(&rec.ID, &rec.Name, &cfg, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Config = &params.Config{}
		if err := json.Unmarshal([]byte(cfg), rec.Config); err != nil {
			return nil, fmt.Errorf("parse config of project %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and, via cascade, all of its artifacts.
func (s *Store) DeleteProject(id string) error {
	res, err := s.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// PutCloud stores the project's point cloud as a compressed blob.
func (s *Store) PutCloud(projectID string, c *cloud.Cloud) error {
	blob, err := encodeBlob(c.Points())
	if err != nil {
		return fmt.Errorf("encode cloud: %w", err)
	}
	_, err = s.Exec(`
		INSERT INTO clouds (project_id, point_count, points) VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			point_count = excluded.point_count,
			points = excluded.points,
			updated_at = CURRENT_TIMESTAMP
	`, projectID, c.Len(), blob)
	if err != nil {
		return fmt.Errorf("put cloud for project %s: %w", projectID, err)
	}
	return nil
}

// GetCloud loads the project's point cloud.
func (s *Store) GetCloud(projectID string) (*cloud.Cloud, error) {
	var blob []byte
	err := s.QueryRow(`SELECT points FROM clouds WHERE project_id = ?`, projectID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cloud of project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cloud for project %s: %w", projectID, err)
	}
	var pts []geom.Point3
	if err := decodeBlob(blob, &pts); err != nil {
		return nil, err
	}
	return cloud.New(pts)
}

// PutSlices replaces the project's slice partition.
func (s *Store) PutSlices(projectID string, slices []slicer.Slice) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM slices WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear slices for project %s: %w", projectID, err)
	}
	for _, sl := range slices {
		blob, err := encodeBlob(sl.Points)
		if err != nil {
			return fmt.Errorf("encode slice %d points: %w", sl.Index, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO slices (project_id, idx, z_lo, z_hi, points) VALUES (?, ?, ?, ?, ?)
		`, projectID, sl.Index, sl.ZLo, sl.ZHi, blob); err != nil {
			return fmt.Errorf("put slice %d for project %s: %w", sl.Index, projectID, err)
		}
	}
	return tx.Commit()
}

// GetSlices loads the project's slice partition in index order.
func (s *Store) GetSlices(projectID string) ([]slicer.Slice, error) {
	rows, err := s.Query(`
		SELECT idx, z_lo, z_hi, points FROM slices WHERE project_id = ? ORDER BY idx
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("get slices for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var out []slicer.Slice
	for rows.Next() {
		var sl slicer.Slice
		var blob []byte
		if err := rows.Scan(&sl.Index, &sl.ZLo, &sl.ZHi, &blob); err != nil {
			return nil, err
		}
		if err := decodeBlob(blob, &sl.Points); err != nil {
			return nil, fmt.Errorf("decode slice %d points: %w", sl.Index, err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// PutCentroids stores one slice's centroid set as JSON.
func (s *Store) PutCentroids(projectID string, idx int, set *centroid.Set) error {
	return s.putPayload("centroids", projectID, idx, set)
}

// GetCentroids loads one slice's centroid set.
func (s *Store) GetCentroids(projectID string, idx int) (*centroid.Set, error) {
	set := &centroid.Set{}
	if err := s.getPayload("centroids", projectID, idx, set); err != nil {
		return nil, err
	}
	return set, nil
}

// PutPolylines stores one slice's polylines as JSON.
func (s *Store) PutPolylines(projectID string, idx int, pls []trace.Polyline) error {
	return s.putPayload("polylines", projectID, idx, pls)
}

// GetPolylines loads one slice's polylines.
func (s *Store) GetPolylines(projectID string, idx int) ([]trace.Polyline, error) {
	var pls []trace.Polyline
	if err := s.getPayload("polylines", projectID, idx, &pls); err != nil {
		return nil, err
	}
	return pls, nil
}

// putPayload upserts a JSON artifact row. The table name is one of the
// fixed artifact tables, never user input.
func (s *Store) putPayload(table, projectID string, idx int, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", table, err)
	}
	_, err = s.Exec(fmt.Sprintf(`
		INSERT INTO %s (project_id, idx, payload) VALUES (?, ?, ?)
		ON CONFLICT(project_id, idx) DO UPDATE SET
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`, table), projectID, idx, string(payload))
	if err != nil {
		return fmt.Errorf("put %s for project %s slice %d: %w", table, projectID, idx, err)
	}
	return nil
}

func (s *Store) getPayload(table, projectID string, idx int, out interface{}) error {
	var payload string
	err := s.QueryRow(fmt.Sprintf(`
		SELECT payload FROM %s WHERE project_id = ? AND idx = ?
	`, table), projectID, idx).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s of project %s slice %d: %w", table, projectID, idx, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s for project %s slice %d: %w", table, projectID, idx, err)
	}
	return json.Unmarshal([]byte(payload), out)
}

// PutStatuses replaces the stage statuses of one slice.
func (s *Store) PutStatuses(projectID string, idx int, statuses []stage.Status) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM stage_status WHERE project_id = ? AND idx = ?
	`, projectID, idx); err != nil {
		return fmt.Errorf("clear statuses for project %s slice %d: %w", projectID, idx, err)
	}
	for si, st := range statuses {
		if si >= len(stage.Stages()) {
			break
		}
		errsJSON, err := json.Marshal(st.Errors)
		if err != nil {
			return fmt.Errorf("marshal status errors: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO stage_status (project_id, idx, stage, state, errors) VALUES (?, ?, ?, ?, ?)
		`, projectID, idx, stage.Stage(si).String(), int(st.State), string(errsJSON)); err != nil {
			return fmt.Errorf("put status for project %s slice %d stage %s: %w", projectID, idx, stage.Stage(si), err)
		}
	}
	return tx.Commit()
}

// GetStatuses loads the stage statuses of one slice, in stage order. Stages
// without a stored row come back stale, matching a never-run stage.
func (s *Store) GetStatuses(projectID string, idx int) ([]stage.Status, error) {
	out := make([]stage.Status, len(stage.Stages()))
	for _, st := range stage.Stages() {
		var state int
		var errsJSON string
		err := s.QueryRow(`
			SELECT state, errors FROM stage_status WHERE project_id = ? AND idx = ? AND stage = ?
		`, projectID, idx, st.String()).Scan(&state, &errsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get status for project %s slice %d stage %s: %w", projectID, idx, st, err)
		}
		status := stage.Status{State: stage.State(state)}
		if err := json.Unmarshal([]byte(errsJSON), &status.Errors); err != nil {
			return nil, fmt.Errorf("parse status errors: %w", err)
		}
		out[st] = status
	}
	return out, nil
}
