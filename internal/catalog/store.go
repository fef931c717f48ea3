package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnavailable marks catalog database failures: the backing file cannot be
// created, read, or written. Fatal to the triggering request, not the process.
var ErrUnavailable = errors.New("catalog store unavailable")

// Store persists the catalog in SQLite while exposing a load/save-shaped API.
// Save replaces the whole document inside one transaction, so a crash mid-save
// leaves the previous catalog intact. Update is the serialization point for
// load-modify-save cycles; every mutation must go through it.
type Store struct {
	db   *sql.DB
	path string

	mu sync.Mutex
}

// Open initializes or connects to the catalog database and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: apply pragma %q: %w", ErrUnavailable, pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the full catalog.
func (s *Store) Load(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM folders ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: query folders: %w", ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var folder Folder
		var color sql.NullString
		if err := rows.Scan(&folder.ID, &folder.Name, &color); err != nil {
			return nil, fmt.Errorf("%w: scan folder: %w", ErrUnavailable, err)
		}
		if color.Valid {
			folder.Color = &color.String
		}
		cat.Folders = append(cat.Folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate folders: %w", ErrUnavailable, err)
	}

	imageRows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, original_name, display_name, tags_json, folder_id, created_at, gif_file
         FROM images ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: query images: %w", ErrUnavailable, err)
	}
	defer imageRows.Close()
	for imageRows.Next() {
		image, err := scanImage(imageRows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		cat.Images = append(cat.Images, *image)
	}
	if err := imageRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate images: %w", ErrUnavailable, err)
	}

	return cat, nil
}

// Save atomically replaces the persisted catalog with the given one. The
// replacement commits as a single transaction: either the new document is
// fully visible to the next Load or the previous one is untouched.
func (s *Store) Save(ctx context.Context, cat *Catalog) error {
	if cat == nil {
		return errors.New("catalog is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin save: %w", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM images`); err != nil {
		return fmt.Errorf("%w: clear images: %w", ErrUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders`); err != nil {
		return fmt.Errorf("%w: clear folders: %w", ErrUnavailable, err)
	}

	for _, folder := range cat.Folders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folders (id, name, color) VALUES (?, ?, ?)`,
			folder.ID, folder.Name, nullableString(folder.Color),
		); err != nil {
			return fmt.Errorf("%w: insert folder %s: %w", ErrUnavailable, folder.ID, err)
		}
	}

	for _, image := range cat.Images {
		tagsJSON, err := json.Marshal(image.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", image.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO images (id, filename, original_name, display_name, tags_json, folder_id, created_at, gif_file)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			image.ID,
			image.Filename,
			image.OriginalName,
			nullableString(image.DisplayName),
			string(tagsJSON),
			nullableString(image.FolderID),
			image.CreatedAt.UTC().Format(time.RFC3339Nano),
			nullableString(image.GIFFile),
		); err != nil {
			return fmt.Errorf("%w: insert image %s: %w", ErrUnavailable, image.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit save: %w", ErrUnavailable, err)
	}
	return nil
}

// Update runs fn inside the store's load-modify-save critical section. The
// in-process mutex makes concurrent mutations last-writer-safe instead of
// last-writer-wins: each caller sees the previous caller's committed state.
func (s *Store) Update(ctx context.Context, fn func(*Catalog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(cat); err != nil {
		return err
	}
	return s.Save(ctx, cat)
}

// Counts returns the number of image and folder records without loading the
// full document.
func (s *Store) Counts(ctx context.Context) (images int, folders int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM images`).Scan(&images); err != nil {
		return 0, 0, fmt.Errorf("%w: count images: %w", ErrUnavailable, err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM folders`).Scan(&folders); err != nil {
		return 0, 0, fmt.Errorf("%w: count folders: %w", ErrUnavailable, err)
	}
	return images, folders, nil
}

func scanImage(scanner interface{ Scan(dest ...any) error }) (*Image, error) {
	var (
		image       Image
		displayName sql.NullString
		tagsJSON    string
		folderID    sql.NullString
		createdRaw  string
		gifFile     sql.NullString
	)

	if err := scanner.Scan(
		&image.ID,
		&image.Filename,
		&image.OriginalName,
		&displayName,
		&tagsJSON,
		&folderID,
		&createdRaw,
		&gifFile,
	); err != nil {
		return nil, fmt.Errorf("scan image: %w", err)
	}

	if displayName.Valid {
		image.DisplayName = &displayName.String
	}
	if folderID.Valid {
		image.FolderID = &folderID.String
	}
	if gifFile.Valid {
		image.GIFFile = &gifFile.String
	}
	if err := json.Unmarshal([]byte(tagsJSON), &image.Tags); err != nil {
		return nil, fmt.Errorf("parse tags for %s: %w", image.ID, err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		image.CreatedAt = created
	}

	return &image, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
