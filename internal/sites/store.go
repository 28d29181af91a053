package sites

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sitekeeper/internal/config"
	"sitekeeper/internal/services"
)

// Store persists sites, their credentials, and tool settings in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const siteColumns = `id, name, base_url, connector_key, connector_secret,
    plugin_version, agent_version, created_at, updated_at`

// Open initializes or connects to the site database under the data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at an explicit location.
func OpenPath(path string) (*Store, error) {
	// Pragmas ride on the DSN so every pooled connection gets them.
	dsn := (&url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{"_pragma": {
			"journal_mode(WAL)",
			"foreign_keys(1)",
			"busy_timeout(5000)",
		}}.Encode(),
	}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert creates a site row. Credentials may be empty.
func (s *Store) Insert(ctx context.Context, site *Site) (*Site, error) {
	if site == nil {
		return nil, errors.New("site is nil")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO sites (name, base_url, connector_key, connector_secret,
                plugin_version, agent_version, tool_settings, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, '{}', ?, ?)`,
			site.Name,
			site.BaseURL,
			nullableString(site.Key),
			nullableString(site.Secret),
			nullableString(site.PluginVersion),
			nullableString(site.AgentVersion),
			timestamp,
			timestamp,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrInvalidRequest, "sites", "register",
				fmt.Sprintf("a site with base url %s already exists", site.BaseURL), nil)
		}
		return nil, fmt.Errorf("insert site: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a site by identifier. It returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*Site, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

// List returns all sites ordered by identifier.
func (s *Store) List(ctx context.Context) ([]*Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []*Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

// Delete removes a site and its settings.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.execAffectingSite(ctx, "remove", id, `DELETE FROM sites WHERE id = ?`, id)
}

// SetCredentials replaces the key/secret pair in one statement.
func (s *Store) SetCredentials(ctx context.Context, id int64, creds Credentials) error {
	if strings.TrimSpace(creds.Key) == "" || strings.TrimSpace(creds.Secret) == "" {
		return errors.New("credentials must include key and secret")
	}
	return s.execAffectingSite(ctx, "set credentials", id,
		`UPDATE sites SET connector_key = ?, connector_secret = ?,
            plugin_version = NULL, agent_version = NULL, updated_at = ?
         WHERE id = ?`,
		creds.Key, creds.Secret, now(), id)
}

// ClearCredentials nulls key, secret, and versions in a single statement so no
// reader can observe a half-cleared pair.
func (s *Store) ClearCredentials(ctx context.Context, id int64) error {
	return s.execAffectingSite(ctx, "clear credentials", id,
		`UPDATE sites SET connector_key = NULL, connector_secret = NULL,
            plugin_version = NULL, agent_version = NULL, updated_at = ?
         WHERE id = ?`,
		now(), id)
}

// SetVersions records the connector plugin and agent versions.
func (s *Store) SetVersions(ctx context.Context, id int64, pluginVersion, agentVersion string) error {
	return s.execAffectingSite(ctx, "set versions", id,
		`UPDATE sites SET plugin_version = ?, agent_version = ?, updated_at = ? WHERE id = ?`,
		nullableString(pluginVersion), nullableString(agentVersion), now(), id)
}

// LoadSettings decodes the stored tool settings map. Numbers decode as json.Number
// so unknown keys round-trip verbatim.
func (s *Store) LoadSettings(ctx context.Context, id int64) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT tool_settings FROM sites WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("load settings", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return decodeSettings(raw)
}

// UpdateSettings applies mutate to the stored settings inside one transaction.
func (s *Store) UpdateSettings(ctx context.Context, id int64, mutate func(map[string]any)) (map[string]any, error) {
	var result map[string]any
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var raw string
		err = tx.QueryRowContext(ctx, `SELECT tool_settings FROM sites WHERE id = ?`, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("update settings", id)
		}
		if err != nil {
			return err
		}
		current, err := decodeSettings(raw)
		if err != nil {
			return err
		}
		mutate(current)
		encoded, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sites SET tool_settings = ?, updated_at = ? WHERE id = ?`,
			string(encoded), now(), id,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) execAffectingSite(ctx context.Context, op string, id int64, query string, args ...any) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return notFound(op, id)
	}
	return nil
}

func decodeSettings(raw string) (map[string]any, error) {
	settings := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return settings, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

func scanSite(scanner interface{ Scan(dest ...any) error }) (*Site, error) {
	var (
		site                   Site
		key, secret            sql.NullString
		pluginVer, agentVer    sql.NullString
		createdRaw, updatedRaw string
	)
	if err := scanner.Scan(
		&site.ID, &site.Name, &site.BaseURL, &key, &secret,
		&pluginVer, &agentVer, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	site.Key = key.String
	site.Secret = secret.String
	site.PluginVersion = pluginVer.String
	site.AgentVersion = agentVer.String
	site.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdRaw)
	site.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedRaw)
	return &site, nil
}

func notFound(op string, id int64) error {
	return services.Wrap(services.ErrNotFound, "sites", op, fmt.Sprintf("site %d", id), nil)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
