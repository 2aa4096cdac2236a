// extensions.go -- Queries on the client_extensions table.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

const extensionColumns = `id, client_id, extension_id, extension_name, is_connected,
	connected_at, long_lived_token, token_expires_at, access_token, page_ids`

// ListExtensions returns every connection record of clientID, oldest first.
// Returns an empty slice, not an error, when the client has none.
func (s *PostgresStore) ListExtensions(ctx context.Context, clientID string) ([]connect.Extension, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+extensionColumns+" FROM client_extensions WHERE client_id = $1 ORDER BY created_at, id",
		clientID)
	if err != nil {
		return nil, fmt.Errorf("querying extensions: %w", err)
	}

	exts, err := pgx.CollectRows(rows, scanExtension)
	if err != nil {
		return nil, fmt.Errorf("reading extensions: %w", err)
	}
	if exts == nil {
		exts = []connect.Extension{}
	}
	return exts, nil
}

// CreateExtension inserts rec under a fresh UUID v7.
func (s *PostgresStore) CreateExtension(ctx context.Context, rec connect.ConnectionRecord) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating extension id: %w", err)
	}
	pageIDs, err := encodePageIDs(rec.PageIDs)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO client_extensions (
			id, client_id, extension_id, extension_name, is_connected,
			connected_at, long_lived_token, token_expires_at, access_token, page_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, rec.ClientID, rec.ExtensionID, rec.ExtensionName, rec.IsConnected,
		nullTime(rec.ConnectedAt), rec.LongLivedToken, nullTime(rec.TokenExpiresAt), rec.AccessToken, pageIDs,
	)
	if err != nil {
		return fmt.Errorf("inserting extension: %w", err)
	}
	return nil
}

// UpdateExtension overwrites the mutable columns of row id.
// client_id and extension_name are never touched.
// Returns ErrExtensionNotFound when no row matches.
func (s *PostgresStore) UpdateExtension(ctx context.Context, id string, patch connect.ConnectionPatch) error {
	rowID, err := uuid.FromString(id)
	if err != nil {
		return fmt.Errorf("parsing extension id %q: %w", id, err)
	}
	pageIDs, err := encodePageIDs(patch.PageIDs)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE client_extensions SET
			extension_id = $2,
			is_connected = $3,
			connected_at = $4,
			long_lived_token = $5,
			token_expires_at = $6,
			access_token = $7,
			page_ids = $8,
			updated_at = now()
		WHERE id = $1`,
		rowID, patch.ExtensionID, patch.IsConnected, nullTime(patch.ConnectedAt),
		patch.LongLivedToken, nullTime(patch.TokenExpiresAt), patch.AccessToken, pageIDs,
	)
	if err != nil {
		return fmt.Errorf("updating extension: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExtensionNotFound
	}
	return nil
}

// scanExtension reads one row selected with extensionColumns.
func scanExtension(row pgx.CollectableRow) (connect.Extension, error) {
	var (
		id             uuid.UUID
		ext            connect.Extension
		connectedAt    *time.Time
		tokenExpiresAt *time.Time
		pageIDs        []byte
	)
	err := row.Scan(
		&id, &ext.ClientID, &ext.ExtensionID, &ext.ExtensionName, &ext.IsConnected,
		&connectedAt, &ext.LongLivedToken, &tokenExpiresAt, &ext.AccessToken, &pageIDs,
	)
	if err != nil {
		return connect.Extension{}, err
	}

	ext.ID = id.String()
	if connectedAt != nil {
		ext.ConnectedAt = *connectedAt
	}
	if tokenExpiresAt != nil {
		ext.TokenExpiresAt = *tokenExpiresAt
	}
	if len(pageIDs) > 0 {
		if err := json.Unmarshal(pageIDs, &ext.PageIDs); err != nil {
			return connect.Extension{}, fmt.Errorf("decoding page_ids of %s: %w", ext.ID, err)
		}
	}
	return ext, nil
}

// encodePageIDs marshals the selected numbers for the jsonb column. nil encodes as [].
func encodePageIDs(numbers []connect.SelectedNumber) ([]byte, error) {
	if numbers == nil {
		numbers = []connect.SelectedNumber{}
	}
	data, err := json.Marshal(numbers)
	if err != nil {
		return nil, fmt.Errorf("encoding page_ids: %w", err)
	}
	return data, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
