package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/freezedry/internal/model"
)

// Lookup returns the cached response for url. Expired entries are misses.
// It implements fetch.Cache.
func (adb *ArchiveDB) Lookup(ctx context.Context, url string) (*model.Response, bool, error) {
	query := `
	SELECT final_url, status_code, content_type, headers, body, fetched_at
	FROM responses
	WHERE url = ?
	`

	var (
		resp        model.Response
		contentType sql.NullString
		headersJSON sql.NullString
		fetchedAt   string
	)
	err := adb.db.QueryRowContext(ctx, query, url).Scan(
		&resp.URL,
		&resp.StatusCode,
		&contentType,
		&headersJSON,
		&resp.Body,
		&fetchedAt,
	)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up response: %w", err)
	}

	if adb.maxAge > 0 && time.Since(parseTimestamp(fetchedAt)) > adb.maxAge {
		return nil, false, nil
	}
	resp.ContentType = contentType.String
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &resp.Headers); err != nil {
			return nil, false, fmt.Errorf("failed to parse headers: %w", err)
		}
	}
	return &resp, true, nil
}

// Store caches resp under url, replacing an earlier entry.
// It implements fetch.Cache.
func (adb *ArchiveDB) Store(ctx context.Context, url string, resp *model.Response) error {
	headersJSON, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO responses (url, final_url, status_code, content_type, headers, body, digest, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		final_url = excluded.final_url,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		headers = excluded.headers,
		body = excluded.body,
		digest = excluded.digest,
		fetched_at = excluded.fetched_at
	`
	_, err = adb.db.ExecContext(ctx, query,
		url,
		resp.URL,
		resp.StatusCode,
		resp.ContentType,
		string(headersJSON),
		resp.Body,
		resp.Digest(),
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

// PurgeResponses deletes cached responses fetched before cutoff and returns
// how many were removed.
func (adb *ArchiveDB) PurgeResponses(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := adb.db.ExecContext(ctx, `DELETE FROM responses WHERE fetched_at < ?`, formatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge responses: %w", err)
	}
	return result.RowsAffected()
}
