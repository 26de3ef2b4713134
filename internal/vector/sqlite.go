package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore keeps texts and embeddings in a single SQLite file and ranks
// by cosine similarity.
type SQLiteStore struct {
	path  string
	table string
	db    *sql.DB
}

func NewSQLiteStore(path, table string) *SQLiteStore {
	if table == "" {
		table = "documents"
	}
	return &SQLiteStore{path: path, table: table}
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Open opens the store file. A file SQLite reports as corrupt or not a
// database is moved aside to <path>.corrupt and a fresh one is created. Any
// other failure is returned and the file is left untouched.
func (s *SQLiteStore) Open(ctx context.Context) error {
	if !tableName.MatchString(s.table) {
		return fmt.Errorf("invalid table name %q", s.table)
	}
	if s.db != nil {
		return nil
	}

	db, err := s.open(ctx)
	if err != nil {
		if !isCorrupt(err) {
			return err
		}
		slog.WarnContext(ctx, "vector store corrupt, recreating", "path", s.path, "error", err)
		if err := s.quarantine(); err != nil {
			return err
		}
		db, err = s.open(ctx)
		if err != nil {
			return err
		}
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) quarantine() error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Rename(s.path+suffix, s.path+".corrupt"+suffix)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("move corrupt store aside: %w", err)
		}
	}
	return nil
}

func isCorrupt(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

func (s *SQLiteStore) open(ctx context.Context) (*sql.DB, error) {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := s.migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) migrate(ctx context.Context, db *sql.DB) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id             TEXT PRIMARY KEY,
		text           TEXT NOT NULL,
		metadata       TEXT NOT NULL DEFAULT '{}',
		text_embedding BLOB NOT NULL,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_created ON %[1]s(created_at);
	`, s.table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	var n int
	return db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n)
}

func (s *SQLiteStore) Add(ctx context.Context, records []Record, vectors [][]float32) error {
	if s.db == nil {
		return errors.New("sqlite store not open")
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d records", len(vectors), len(records))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, text, metadata, text_embedding, created_at) VALUES (?, ?, ?, ?, ?)", s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, r := range records {
		meta := r.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), r.Text, string(metaJSON),
			float32SliceToBytes(vectors[i]), now); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(ctx context.Context, _ string, vector []float32, k int) ([]Document, error) {
	if s.db == nil {
		return nil, errors.New("sqlite store not open")
	}
	if k <= 0 {
		return []Document{}, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT text, metadata, text_embedding FROM %s", s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			text, metaJSON string
			blob           []byte
		)
		if err := rows.Scan(&text, &metaJSON, &blob); err != nil {
			return nil, err
		}
		meta := map[string]interface{}{}
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		docs = append(docs, Document{
			Content:  text,
			Metadata: meta,
			Score:    cosine(vector, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errors.New("sqlite store not open")
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
