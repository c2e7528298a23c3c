package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/knowledge"
)

// KnowledgeStore is a SQLite-backed knowledge.Store bound to one collection.
// Similarity search scans the collection and ranks by cosine similarity.
type KnowledgeStore struct {
	db           *sql.DB
	collectionID int64
	collection   string
	ownsDB       bool
}

// NewKnowledgeStore opens the database and gets or creates the configured
// collection.
func NewKnowledgeStore(cfg Config, opts ...Option) (*KnowledgeStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Collection == "" {
		cfg.Collection = knowledge.DefaultCollection
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s, err := newKnowledgeStore(db, cfg.Collection, cfg.AutoMigrate)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewKnowledgeStoreFromDB creates a store from an existing database connection.
func NewKnowledgeStoreFromDB(db *sql.DB, collection string) (*KnowledgeStore, error) {
	return newKnowledgeStore(db, collection, true)
}

func newKnowledgeStore(db *sql.DB, collection string, migrate bool) (*KnowledgeStore, error) {
	s := &KnowledgeStore{db: db, collection: collection}
	if migrate {
		if err := s.migrate(); err != nil {
			return nil, err
		}
	}
	id, err := s.getOrCreateCollection(context.Background(), collection)
	if err != nil {
		return nil, err
	}
	s.collectionID = id
	return s, nil
}

func (s *KnowledgeStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			dimension INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS chunks (
			collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (collection_id, id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

func (s *KnowledgeStore) getOrCreateCollection(ctx context.Context, name string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (name, created_at) VALUES (?, ?)",
		name, time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("create collection %s: %w", name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("load collection %s: %w", name, err)
	}
	return id, nil
}

// Collection returns the collection name.
func (s *KnowledgeStore) Collection() string {
	return s.collection
}

func (s *KnowledgeStore) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE id = ?", s.collectionID).Scan(&dim)
	return dim, err
}

// Upsert stores or replaces a chunk.
func (s *KnowledgeStore) Upsert(ctx context.Context, c *knowledge.Chunk) error {
	return s.UpsertBatch(ctx, []*knowledge.Chunk{c})
}

// UpsertBatch stores several chunks in one transaction.
func (s *KnowledgeStore) UpsertBatch(ctx context.Context, chunks []*knowledge.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if c == nil || c.ID == "" {
			return knowledge.ErrInvalidID
		}
		if len(c.Embedding) == 0 {
			return knowledge.ErrInvalidEmbedding
		}
		if dim == 0 {
			dim = len(c.Embedding)
		} else if len(c.Embedding) != dim {
			return knowledge.ErrDimensionMismatch
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE collections SET dimension = ? WHERE id = ? AND dimension = 0",
		dim, s.collectionID,
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection_id, id, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return err
		}
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			s.collectionID, c.ID, c.Text, encodeEmbedding(c.Embedding), meta, created.UnixNano(),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns the topK chunks most similar to the embedding, best first.
func (s *KnowledgeStore) Search(ctx context.Context, embedding []float32, topK int) ([]knowledge.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, knowledge.ErrInvalidEmbedding
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim > 0 && dim != len(embedding) {
		return nil, knowledge.ErrDimensionMismatch
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, embedding, metadata FROM chunks WHERE collection_id = ?",
		s.collectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []knowledge.SearchResult
	for rows.Next() {
		var (
			id, text string
			blob     []byte
			meta     sql.NullString
		)
		if err := rows.Scan(&id, &text, &blob, &meta); err != nil {
			return nil, err
		}
		md, err := decodeMetadata(meta)
		if err != nil {
			return nil, err
		}
		results = append(results, knowledge.SearchResult{
			ID:       id,
			Text:     text,
			Score:    cosine(embedding, decodeEmbedding(blob)),
			Metadata: md,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if topK < 0 {
		topK = 0
	}
	if topK < len(results) {
		results = results[:topK]
	}
	return knowledge.Rank(results), nil
}

// Get retrieves a chunk by ID.
func (s *KnowledgeStore) Get(ctx context.Context, id string) (*knowledge.Chunk, error) {
	if id == "" {
		return nil, knowledge.ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, text, embedding, metadata, created_at FROM chunks WHERE collection_id = ? AND id = ?",
		s.collectionID, id,
	)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, knowledge.ErrNotFound
	}
	return c, err
}

// Delete removes a chunk by ID.
func (s *KnowledgeStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return knowledge.ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection_id = ? AND id = ?",
		s.collectionID, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return knowledge.ErrNotFound
	}
	return nil
}

// List returns chunks matching the filter ordered by ID. Metadata filters
// are applied after loading.
func (s *KnowledgeStore) List(ctx context.Context, filter knowledge.ListFilter) ([]*knowledge.Chunk, error) {
	query := "SELECT id, text, embedding, metadata, created_at FROM chunks WHERE collection_id = ?"
	args := []any{s.collectionID}
	if filter.IDPrefix != "" {
		query += " AND id LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(filter.IDPrefix)+"%")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*knowledge.Chunk
	skipped := 0
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if !matchesMetadata(c.Metadata, filter.Metadata) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []*knowledge.Chunk{}
	}
	return out, nil
}

// Count returns the number of chunks in the collection.
func (s *KnowledgeStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection_id = ?", s.collectionID,
	).Scan(&n)
	return n, err
}

// Reset drops every chunk of the collection and clears its dimension.
func (s *KnowledgeStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection_id = ?", s.collectionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE collections SET dimension = 0 WHERE id = ?", s.collectionID); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database when the store opened it.
func (s *KnowledgeStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*knowledge.Chunk, error) {
	var (
		c       knowledge.Chunk
		blob    []byte
		meta    sql.NullString
		created int64
	)
	if err := row.Scan(&c.ID, &c.Text, &blob, &meta, &created); err != nil {
		return nil, err
	}
	md, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	c.Embedding = decodeEmbedding(blob)
	c.Metadata = md
	c.CreatedAt = time.Unix(0, created)
	return &c, nil
}

// encodeEmbedding stores vectors as little-endian float32.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(s sql.NullString) (map[string]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func matchesMetadata(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
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

var _ knowledge.BatchStore = (*KnowledgeStore)(nil)
