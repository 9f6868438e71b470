package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

const registryDBName = "registry.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scopes (
	scope     TEXT PRIMARY KEY,
	base_path TEXT NOT NULL,
	keywords  TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS entries (
	scope        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL,
	tiers        TEXT NOT NULL DEFAULT '[]',
	category     TEXT NOT NULL DEFAULT '',
	capabilities TEXT NOT NULL DEFAULT '[]',
	triggers     TEXT NOT NULL DEFAULT '[]',
	description  TEXT NOT NULL DEFAULT '',
	path         TEXT NOT NULL,
	parallel     INTEGER NOT NULL DEFAULT 1,
	mtime        INTEGER NOT NULL,
	PRIMARY KEY (scope, kind, name)
);

CREATE TABLE IF NOT EXISTS commands (
	scope TEXT NOT NULL,
	name  TEXT NOT NULL,
	path  TEXT NOT NULL,
	mtime INTEGER NOT NULL,
	PRIMARY KEY (scope, name)
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// sharedScopeKey is the scope column value for the shared scope; project
// scopes use their project name.
const sharedScopeKey = "shared"

// SQLiteStore persists the catalog in a SQLite database, one row per entry
// keyed by (scope, kind, name). Saves replace rows transactionally, so rows
// untouched by an incremental sync are rewritten with identical values.
type SQLiteStore struct {
	dbPath string
	db     *sqlx.DB
}

type entryRow struct {
	Scope        string `db:"scope"`
	Kind         string `db:"kind"`
	Name         string `db:"name"`
	Tiers        string `db:"tiers"`
	Category     string `db:"category"`
	Capabilities string `db:"capabilities"`
	Triggers     string `db:"triggers"`
	Description  string `db:"description"`
	Path         string `db:"path"`
	Parallel     bool   `db:"parallel"`
	ModTime      int64  `db:"mtime"`
}

type scopeRow struct {
	Scope    string `db:"scope"`
	BasePath string `db:"base_path"`
	Keywords string `db:"keywords"`
}

type commandRow struct {
	Scope   string `db:"scope"`
	Name    string `db:"name"`
	Path    string `db:"path"`
	ModTime int64  `db:"mtime"`
}

// NewSQLiteStore opens (creating if necessary) a SQLite catalog store under
// the configured marker directory.
func NewSQLiteStore(ctx context.Context, config *StoreConfig) (*SQLiteStore, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid store configuration")
	}

	dbPath := filepath.Join(config.storeDir(), registryDBName)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create registry directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open registry database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping registry database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize registry schema")
	}

	return &SQLiteStore{dbPath: dbPath, db: db}, nil
}

// Load reconstructs the catalog from the database.
func (s *SQLiteStore) Load(ctx context.Context) (*catalog.Catalog, error) {
	var lastSynced string
	err := s.db.GetContext(ctx, &lastSynced, "SELECT value FROM meta WHERE key = 'last_synced'")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotSynced
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read registry metadata")
	}

	cat := catalog.New()
	if ts, err := time.Parse(time.RFC3339Nano, lastSynced); err == nil {
		cat.LastSynced = &ts
	}

	var scopes []scopeRow
	if err := s.db.SelectContext(ctx, &scopes, "SELECT scope, base_path, keywords FROM scopes"); err != nil {
		return nil, errors.Wrap(err, "failed to load scopes")
	}
	for _, row := range scopes {
		scope := catalog.NewScope(row.BasePath)
		if err := json.Unmarshal([]byte(row.Keywords), &scope.Keywords); err != nil {
			return nil, errors.Wrapf(err, "corrupt keywords for scope %s", row.Scope)
		}
		if row.Scope == sharedScopeKey {
			cat.Shared = scope
		} else {
			cat.Projects[row.Scope] = scope
		}
	}

	var entries []entryRow
	if err := s.db.SelectContext(ctx, &entries, "SELECT scope, kind, name, tiers, category, capabilities, triggers, description, path, parallel, mtime FROM entries"); err != nil {
		return nil, errors.Wrap(err, "failed to load entries")
	}
	for _, row := range entries {
		entry, err := row.toEntry()
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt entry %s/%s", row.Scope, row.Name)
		}
		scope := s.scopeFor(cat, row.Scope)
		if entry.Kind == catalog.KindAgent {
			scope.Agents[entry.Name] = entry
		} else {
			scope.Skills[entry.Name] = entry
		}
	}

	var commands []commandRow
	if err := s.db.SelectContext(ctx, &commands, "SELECT scope, name, path, mtime FROM commands"); err != nil {
		return nil, errors.Wrap(err, "failed to load commands")
	}
	for _, row := range commands {
		scope := s.scopeFor(cat, row.Scope)
		if scope.Commands == nil {
			scope.Commands = make(map[string]catalog.CommandRef)
		}
		scope.Commands[row.Name] = catalog.CommandRef{Path: row.Path, ModTime: row.ModTime}
	}

	return cat, nil
}

func (s *SQLiteStore) scopeFor(cat *catalog.Catalog, key string) *catalog.Scope {
	if key == sharedScopeKey {
		return cat.Shared
	}
	scope, ok := cat.Projects[key]
	if !ok {
		scope = catalog.NewScope("")
		cat.Projects[key] = scope
	}
	return scope
}

// Save replaces the stored catalog in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, cat *catalog.Catalog) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"scopes", "entries", "commands"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "failed to clear %s", table)
		}
	}

	if err := s.saveScope(ctx, tx, sharedScopeKey, cat.Shared); err != nil {
		return err
	}
	for name, scope := range cat.Projects {
		if err := s.saveScope(ctx, tx, name, scope); err != nil {
			return err
		}
	}

	lastSynced := time.Now().Format(time.RFC3339Nano)
	if cat.LastSynced != nil {
		lastSynced = cat.LastSynced.Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('last_synced', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		lastSynced); err != nil {
		return errors.Wrap(err, "failed to save registry metadata")
	}

	return errors.Wrap(tx.Commit(), "failed to commit registry save")
}

func (s *SQLiteStore) saveScope(ctx context.Context, tx *sqlx.Tx, key string, scope *catalog.Scope) error {
	if scope == nil {
		return nil
	}

	keywords, err := json.Marshal(keywordsOrEmpty(scope.Keywords))
	if err != nil {
		return errors.Wrap(err, "failed to marshal keywords")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO scopes (scope, base_path, keywords) VALUES (?, ?, ?)",
		key, scope.BasePath, string(keywords)); err != nil {
		return errors.Wrapf(err, "failed to save scope %s", key)
	}

	for _, entry := range scope.Agents {
		if err := s.saveEntry(ctx, tx, key, entry); err != nil {
			return err
		}
	}
	for _, entry := range scope.Skills {
		if err := s.saveEntry(ctx, tx, key, entry); err != nil {
			return err
		}
	}

	for name, cmd := range scope.Commands {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO commands (scope, name, path, mtime) VALUES (?, ?, ?, ?)",
			key, name, cmd.Path, cmd.ModTime); err != nil {
			return errors.Wrapf(err, "failed to save command %s/%s", key, name)
		}
	}

	return nil
}

func (s *SQLiteStore) saveEntry(ctx context.Context, tx *sqlx.Tx, scope string, entry *catalog.Entry) error {
	row, err := toEntryRow(scope, entry)
	if err != nil {
		return errors.Wrapf(err, "failed to encode entry %s/%s", scope, entry.Name)
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO entries (scope, kind, name, tiers, category, capabilities, triggers, description, path, parallel, mtime)
		VALUES (:scope, :kind, :name, :tiers, :category, :capabilities, :triggers, :description, :path, :parallel, :mtime)`,
		row)
	return errors.Wrapf(err, "failed to save entry %s/%s", scope, entry.Name)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toEntryRow(scope string, entry *catalog.Entry) (*entryRow, error) {
	tiers, err := json.Marshal(tiersOrEmpty(entry.Tiers))
	if err != nil {
		return nil, err
	}
	capabilities, err := json.Marshal(keywordsOrEmpty(entry.Capabilities))
	if err != nil {
		return nil, err
	}
	triggers, err := json.Marshal(keywordsOrEmpty(entry.Triggers))
	if err != nil {
		return nil, err
	}
	return &entryRow{
		Scope:        scope,
		Kind:         string(entry.Kind),
		Name:         entry.Name,
		Tiers:        string(tiers),
		Category:     entry.Category,
		Capabilities: string(capabilities),
		Triggers:     string(triggers),
		Description:  entry.Description,
		Path:         entry.Path,
		Parallel:     entry.Parallel,
		ModTime:      entry.ModTime,
	}, nil
}

func (r *entryRow) toEntry() (*catalog.Entry, error) {
	entry := &catalog.Entry{
		Name:        r.Name,
		Kind:        catalog.Kind(r.Kind),
		Category:    r.Category,
		Description: r.Description,
		Path:        r.Path,
		Parallel:    r.Parallel,
		ModTime:     r.ModTime,
	}
	if err := json.Unmarshal([]byte(r.Tiers), &entry.Tiers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Capabilities), &entry.Capabilities); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Triggers), &entry.Triggers); err != nil {
		return nil, err
	}
	return entry, nil
}

func keywordsOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func tiersOrEmpty(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}
