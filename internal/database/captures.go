package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nao1215/freezedry/internal/model"
)

// SaveCapture records a capture, replacing an earlier record with the same
// ID.
func (adb *ArchiveDB) SaveCapture(ctx context.Context, c *model.Capture) error {
	if c.ID == "" {
		return fmt.Errorf("capture of %s has no ID", c.URL)
	}
	resources, err := json.Marshal(c.Resources)
	if err != nil {
		return fmt.Errorf("failed to serialize resources: %w", err)
	}
	failures, err := json.Marshal(c.Failures)
	if err != nil {
		return fmt.Errorf("failed to serialize failures: %w", err)
	}

	query := `
	INSERT INTO captures (id, url, started_at, finished_at, mode, output_path, bytes, digest, resources, failures, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		output_path = excluded.output_path,
		bytes = excluded.bytes,
		digest = excluded.digest,
		resources = excluded.resources,
		failures = excluded.failures,
		error = excluded.error
	`
	_, err = adb.db.ExecContext(ctx, query,
		c.ID,
		c.URL,
		formatTimestamp(c.StartedAt),
		formatTimestamp(c.FinishedAt),
		c.Mode,
		c.OutputPath,
		c.Bytes,
		c.Digest,
		string(resources),
		string(failures),
		c.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	return nil
}

// GetCapture returns the capture with id, or nil when there is none.
func (adb *ArchiveDB) GetCapture(ctx context.Context, id string) (*model.Capture, error) {
	row := adb.db.QueryRowContext(ctx, selectCaptures+` WHERE id = ?`, id)
	c, err := scanCapture(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return c, nil
}

// ListCaptures returns captures newest first, of url only when url is not
// empty. limit <= 0 means no limit.
func (adb *ArchiveDB) ListCaptures(ctx context.Context, url string, limit int) ([]*model.Capture, error) {
	query := selectCaptures + ` WHERE 1=1`
	args := make([]any, 0, 2)
	if url != "" {
		query += " AND url = ?"
		args = append(args, url)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var captures []*model.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

const selectCaptures = `
	SELECT id, url, started_at, finished_at, mode, output_path, bytes, digest, resources, failures, error
	FROM captures`

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(s scanner) (*model.Capture, error) {
	var (
		c                           model.Capture
		startedAt                   string
		finishedAt, mode, output    sql.NullString
		digest, resources, failures sql.NullString
		errText                     sql.NullString
	)
	if err := s.Scan(&c.ID, &c.URL, &startedAt, &finishedAt, &mode, &output, &c.Bytes, &digest, &resources, &failures, &errText); err != nil {
		return nil, err
	}
	c.StartedAt = parseTimestamp(startedAt)
	c.FinishedAt = parseTimestamp(finishedAt.String)
	c.Mode = mode.String
	c.OutputPath = output.String
	c.Digest = digest.String
	c.Error = errText.String

	c.Resources = make(map[string]int)
	if resources.String != "" {
		if err := json.Unmarshal([]byte(resources.String), &c.Resources); err != nil {
			return nil, err
		}
		if c.Resources == nil {
			c.Resources = make(map[string]int)
		}
	}
	if failures.String != "" && failures.String != "null" {
		if err := json.Unmarshal([]byte(failures.String), &c.Failures); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
