package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"maturity-navigator-api/pkg/models"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// 対応しているドライバー名
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// 文字列比較で時系列順に並ぶ固定長のUTC時刻フォーマット
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore はSQLデータベースに評価ドキュメントを保存します。
// 検索に使う列以外はJSONドキュメントとして1列に保存します。
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore はドライバーに応じてデータベースを開き、未適用のマイグレーションを実行します。
// SQLiteではdsnにファイルパスを、テストでは ":memory:" を指定します。
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverMySQL:
		return openMySQL(dsn)
	}
	return nil, fmt.Errorf("unsupported store driver %q", driver)
}

func openSQLite(dsn string) (*SQLStore, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// "database is locked" を避けるため接続は1本に制限
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return newSQLStore(db, DriverSQLite)
}

func openMySQL(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	log.Printf("✅ MySQLに接続しました")

	return newSQLStore(db, DriverMySQL)
}

func newSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close データベース接続を閉じる
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// migrate は埋め込まれたマイグレーションのうち未適用のものを順に適用します。
func (s *SQLStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	dir := "migrations/" + s.driver
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func columns(rec models.AssessmentRecord) (doc string, createdAt string, completedAt sql.NullString, err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("encoding assessment %s: %w", rec.ID, err)
	}
	if rec.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*rec.CompletedAt), Valid: true}
	}
	return string(b), formatTime(rec.CreatedAt), completedAt, nil
}

// Create implements Store.
func (s *SQLStore) Create(ctx context.Context, rec models.AssessmentRecord) error {
	if _, err := s.Get(ctx, rec.ID); err == nil {
		return ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	doc, createdAt, completedAt, err := columns(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, user_id, status, created_at, completed_at, document)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, string(rec.Status), createdAt, completedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("inserting assessment %s: %w", rec.ID, err)
	}
	return nil
}

// upsertQuery ドライバーごとのUPSERT文
func (s *SQLStore) upsertQuery() string {
	const insert = `INSERT INTO assessments (id, user_id, status, created_at, completed_at, document)
		VALUES (?, ?, ?, ?, ?, ?)`
	if s.driver == DriverMySQL {
		return insert + `
		ON DUPLICATE KEY UPDATE
			user_id      = VALUES(user_id),
			status       = VALUES(status),
			created_at   = VALUES(created_at),
			completed_at = VALUES(completed_at),
			document     = VALUES(document)`
	}
	return insert + `
		ON CONFLICT(id) DO UPDATE SET
			user_id      = excluded.user_id,
			status       = excluded.status,
			created_at   = excluded.created_at,
			completed_at = excluded.completed_at,
			document     = excluded.document`
}

// Put implements Store.
func (s *SQLStore) Put(ctx context.Context, rec models.AssessmentRecord) error {
	doc, createdAt, completedAt, err := columns(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(),
		rec.ID, rec.UserID, string(rec.Status), createdAt, completedAt, doc,
	); err != nil {
		return fmt.Errorf("saving assessment %s: %w", rec.ID, err)
	}
	return nil
}

// Update implements Store.
func (s *SQLStore) Update(ctx context.Context, rec models.AssessmentRecord) error {
	existing, err := s.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	return s.Put(ctx, MergeRecord(existing, rec))
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (models.AssessmentRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM assessments WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AssessmentRecord{}, ErrNotFound
	}
	if err != nil {
		return models.AssessmentRecord{}, fmt.Errorf("loading assessment %s: %w", id, err)
	}
	return decodeRecord(doc)
}

func decodeRecord(doc string) (models.AssessmentRecord, error) {
	var rec models.AssessmentRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return models.AssessmentRecord{}, fmt.Errorf("decoding assessment: %w", err)
	}
	return rec, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting assessment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser implements Store.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]models.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM assessments WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	var out []models.AssessmentRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			log.Printf("⚠️ 壊れた評価ドキュメントをスキップします: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
