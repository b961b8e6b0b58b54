package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table.
type Document struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	Subject        string `json:"subject"`
	DocType        string `json:"doc_type"`
	Category       string `json:"category"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	DocDate        string `json:"doc_date"`
	Note           string `json:"note,omitempty"`
	AttachmentPath string `json:"attachment_path,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// CanonicalEntity represents a row in the canonical_entities table.
// Aliases holds every raw surface form seen for this entity besides
// the canonical name, in first-seen order.
type CanonicalEntity struct {
	ID            int64    `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	EntityType    string   `json:"entity_type"`
	Aliases       []string `json:"aliases"`
	MentionCount  int      `json:"mention_count"`
	CreatedAt     string   `json:"created_at"`
}

// EntityMention links a document to a canonical entity.
type EntityMention struct {
	DocumentID  int64  `json:"document_id"`
	EntityID    int64  `json:"entity_id"`
	SurfaceText string `json:"surface_text"`
	ExtractedAt string `json:"extracted_at"`
}

// EntityRelation represents a labelled edge between two canonical entities,
// sourced from one document.
type EntityRelation struct {
	ID             int64  `json:"id"`
	DocumentID     int64  `json:"document_id"`
	SourceEntityID int64  `json:"source_entity_id"`
	TargetEntityID int64  `json:"target_entity_id"`
	RelationLabel  string `json:"relation_label"`
}

// RetrievalResult holds a document with its retrieval scores.
type RetrievalResult struct {
	DocumentID  int64   `json:"document_id"`
	Number      string  `json:"number"`
	Subject     string  `json:"subject"`
	DocType     string  `json:"doc_type"`
	Category    string  `json:"category"`
	Sender      string  `json:"sender"`
	Receiver    string  `json:"receiver"`
	DocDate     string  `json:"doc_date"`
	Note        string  `json:"note"`
	Similarity  float64 `json:"similarity"`
	KeywordRank float64 `json:"keyword_rank"`
}

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	SourceCount      int    `json:"source_count"`
	ModelUsed        string `json:"model_used"`
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Store wraps the SQLite database for all docmind persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Create schema
	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// InsertDocument inserts a document record and returns its ID.
func (s *Store) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (number, subject, doc_type, category, sender, receiver, doc_date, note, attachment_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.Number, doc.Subject, doc.DocType, doc.Category, doc.Sender, doc.Receiver,
		doc.DocDate, doc.Note, doc.AttachmentPath)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetDocument retrieves a document by ID. Returns sql.ErrNoRows when absent.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, subject, doc_type, category, sender, receiver, doc_date, note, attachment_path, created_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Number, &doc.Subject, &doc.DocType, &doc.Category,
		&doc.Sender, &doc.Receiver, &doc.DocDate, &doc.Note, &doc.AttachmentPath, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListUnextractedDocuments returns documents with no extracted_documents row,
// most recent first, up to limit.
func (s *Store) ListUnextractedDocuments(ctx context.Context, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.number, d.subject, d.doc_type, d.category, d.sender, d.receiver,
			d.doc_date, d.note, d.attachment_path, d.created_at
		FROM documents d
		LEFT JOIN extracted_documents e ON e.document_id = d.id
		WHERE e.document_id IS NULL
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Number, &d.Subject, &d.DocType, &d.Category,
			&d.Sender, &d.Receiver, &d.DocDate, &d.Note, &d.AttachmentPath, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetDocumentEmbedding stores (or replaces) the vector embedding for a document.
func (s *Store) SetDocumentEmbedding(ctx context.Context, docID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_documents (document_id, embedding) VALUES (?, ?)",
		docID, serializeFloat32(embedding))
	return err
}

// DocumentHasEmbedding checks whether a document has a vector embedding.
func (s *Store) DocumentHasEmbedding(ctx context.Context, docID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vec_documents WHERE document_id = ?", docID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- Canonical entity operations ---

// FindEntityExact looks up an entity by exact normalized name and type.
// Returns (nil, nil) when no such entity exists.
func (s *Store) FindEntityExact(ctx context.Context, name, entityType string) (*CanonicalEntity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, canonical_name, entity_type, aliases, mention_count, created_at
		FROM canonical_entities WHERE canonical_name = ? AND entity_type = ?
	`, name, entityType)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// FindEntitiesExact performs one exact-match lookup pass across many names.
// Results include every entity whose canonical_name matches any input name,
// regardless of type; callers filter by type in memory.
func (s *Store) FindEntitiesExact(ctx context.Context, names []string) ([]CanonicalEntity, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, canonical_name, entity_type, aliases, mention_count, created_at
		FROM canonical_entities WHERE canonical_name IN (?` + repeatPlaceholders(len(names)-1) + `)`

	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntities(rows)
}

// ListEntitiesByType returns all entities of a given type. Used by the
// canonicalizer for alias and fuzzy matching passes.
func (s *Store) ListEntitiesByType(ctx context.Context, entityType string) ([]CanonicalEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_name, entity_type, aliases, mention_count, created_at
		FROM canonical_entities WHERE entity_type = ?
	`, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntities(rows)
}

// InsertEntity creates a new canonical entity. Returns the entity ID.
// A duplicate (canonical_name, entity_type) insert fails with a UNIQUE
// constraint error; callers that race should re-query on failure.
func (s *Store) InsertEntity(ctx context.Context, e CanonicalEntity) (int64, error) {
	aliasesJSON, err := json.Marshal(e.Aliases)
	if err != nil {
		return 0, err
	}
	if e.Aliases == nil {
		aliasesJSON = []byte("[]")
	}
	mentionCount := e.MentionCount
	if mentionCount == 0 {
		mentionCount = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_entities (canonical_name, entity_type, aliases, mention_count)
		VALUES (?, ?, ?, ?)
	`, e.CanonicalName, e.EntityType, string(aliasesJSON), mentionCount)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// TouchEntity records another mention of an existing entity: replaces the
// alias list and increments mention_count. Last writer wins on concurrent
// touches within one batch.
func (s *Store) TouchEntity(ctx context.Context, id int64, aliases []string) error {
	if aliases == nil {
		aliases = []string{}
	}
	aliasesJSON, err := json.Marshal(aliases)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE canonical_entities SET aliases = ?, mention_count = mention_count + 1 WHERE id = ?
	`, string(aliasesJSON), id)
	return err
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(ctx context.Context, id int64) (*CanonicalEntity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, canonical_name, entity_type, aliases, mention_count, created_at
		FROM canonical_entities WHERE id = ?
	`, id)
	return scanEntity(row)
}

// CountEntities returns the total number of canonical entities.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM canonical_entities").Scan(&count)
	return count, err
}

// --- Mention and relation operations ---

// InsertMention writes a document-entity mention. Idempotent: a second
// insert for the same (document, entity) pair is a no-op.
func (s *Store) InsertMention(ctx context.Context, m EntityMention) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO document_entity_mentions (document_id, entity_id, surface_text)
		VALUES (?, ?, ?)
	`, m.DocumentID, m.EntityID, m.SurfaceText)
	return err
}

// MentionsForDocument returns all entity mentions for a document.
func (s *Store) MentionsForDocument(ctx context.Context, docID int64) ([]EntityMention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, entity_id, surface_text, extracted_at
		FROM document_entity_mentions WHERE document_id = ?
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []EntityMention
	for rows.Next() {
		var m EntityMention
		if err := rows.Scan(&m.DocumentID, &m.EntityID, &m.SurfaceText, &m.ExtractedAt); err != nil {
			return nil, err
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// InsertRelation creates a labelled relation between two canonical entities.
func (s *Store) InsertRelation(ctx context.Context, r EntityRelation) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_relations (document_id, source_entity_id, target_entity_id, relation_label)
		VALUES (?, ?, ?, ?)
	`, r.DocumentID, r.SourceEntityID, r.TargetEntityID, r.RelationLabel)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RelationsForDocument returns all relations sourced from a document.
func (s *Store) RelationsForDocument(ctx context.Context, docID int64) ([]EntityRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, source_entity_id, target_entity_id, relation_label
		FROM entity_relations WHERE document_id = ?
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []EntityRelation
	for rows.Next() {
		var r EntityRelation
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.SourceEntityID, &r.TargetEntityID, &r.RelationLabel); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// --- Extraction state ---

// SaveExtraction stores (or replaces) the raw NER payload for a document.
func (s *Store) SaveExtraction(ctx context.Context, docID int64, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO document_extractions (document_id, payload) VALUES (?, ?)
	`, docID, payload)
	return err
}

// GetExtraction returns the raw NER payload for a document.
// Returns sql.ErrNoRows when no extraction has been stored.
func (s *Store) GetExtraction(ctx context.Context, docID int64) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM document_extractions WHERE document_id = ?", docID).Scan(&payload)
	return payload, err
}

// MarkExtractedBatch records a batch of document ids as extracted in one
// transaction. The scheduler calls this every few documents and once more
// at batch end; a failure rolls the whole batch insert back.
func (s *Store) MarkExtractedBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO extracted_documents (document_id) VALUES (?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// IsExtracted checks whether a document is in the extracted set.
func (s *Store) IsExtracted(ctx context.Context, docID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM extracted_documents WHERE document_id = ?", docID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- Query log ---

// LogQuery writes an entry to the query audit log.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (question, answer, source_count, model_used, latency_ms, prompt_tokens, completion_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, q.Question, q.Answer, q.SourceCount, q.ModelUsed, q.LatencyMs,
		q.PromptTokens, q.CompletionTokens, q.TotalTokens)
	return err
}

// --- Diagnostics ---

// DBStats holds counts of key database objects.
type DBStats struct {
	Documents  int `json:"documents"`
	Embeddings int `json:"embeddings"`
	Entities   int `json:"entities"`
	Mentions   int `json:"mentions"`
	Relations  int `json:"relations"`
	Extracted  int `json:"extracted"`
}

// Stats returns counts of documents, embeddings, entities, mentions,
// relations, and extracted documents.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM vec_documents", &stats.Embeddings},
		{"SELECT COUNT(*) FROM canonical_entities", &stats.Entities},
		{"SELECT COUNT(*) FROM document_entity_mentions", &stats.Mentions},
		{"SELECT COUNT(*) FROM entity_relations", &stats.Relations},
		{"SELECT COUNT(*) FROM extracted_documents", &stats.Extracted},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func repeatPlaceholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*CanonicalEntity, error) {
	e := &CanonicalEntity{}
	var aliasesJSON string
	if err := row.Scan(&e.ID, &e.CanonicalName, &e.EntityType, &aliasesJSON,
		&e.MentionCount, &e.CreatedAt); err != nil {
		return nil, err
	}
	if aliasesJSON != "" {
		if err := json.Unmarshal([]byte(aliasesJSON), &e.Aliases); err != nil {
			return nil, fmt.Errorf("decoding aliases for entity %d: %w", e.ID, err)
		}
	}
	return e, nil
}

func collectEntities(rows *sql.Rows) ([]CanonicalEntity, error) {
	var entities []CanonicalEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// ---------------------------------------------------------------------------
// Agent tool queries
// ---------------------------------------------------------------------------

// SearchEntities finds canonical entities whose name or aliases contain the
// query, most-mentioned first.
func (s *Store) SearchEntities(ctx context.Context, query string, limit int) ([]CanonicalEntity, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_name, entity_type, aliases, mention_count, created_at
		FROM canonical_entities
		WHERE canonical_name LIKE ? OR aliases LIKE ?
		ORDER BY mention_count DESC, id ASC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

// DocumentsForEntity returns the documents mentioning an entity, newest first.
func (s *Store) DocumentsForEntity(ctx context.Context, entityID int64, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.number, d.subject, d.doc_type, d.category, d.sender,
		       d.receiver, d.doc_date, d.note, d.attachment_path, d.created_at
		FROM documents d
		JOIN document_entity_mentions m ON m.document_id = d.id
		WHERE m.entity_id = ?
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents for entity %d: %w", entityID, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Number, &d.Subject, &d.DocType, &d.Category,
			&d.Sender, &d.Receiver, &d.DocDate, &d.Note, &d.AttachmentPath, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RelationDetail is one relation edge with both endpoint names resolved.
type RelationDetail struct {
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
	Label      string `json:"label"`
}

// RelationsForEntity returns the relations touching an entity, with the
// endpoint entity names joined in for display.
func (s *Store) RelationsForEntity(ctx context.Context, entityID int64, limit int) ([]RelationDetail, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT src.canonical_name, dst.canonical_name, r.relation_label
		FROM entity_relations r
		JOIN canonical_entities src ON src.id = r.source_entity_id
		JOIN canonical_entities dst ON dst.id = r.target_entity_id
		WHERE r.source_entity_id = ? OR r.target_entity_id = ?
		ORDER BY r.id ASC
		LIMIT ?
	`, entityID, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing relations for entity %d: %w", entityID, err)
	}
	defer rows.Close()

	var rels []RelationDetail
	for rows.Next() {
		var r RelationDetail
		if err := rows.Scan(&r.SourceName, &r.TargetName, &r.Label); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// GetDocumentEmbedding reads a document's stored embedding back from the
// vector table. Returns ErrNoRows when the document has no embedding.
func (s *Store) GetDocumentEmbedding(ctx context.Context, docID int64) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM vec_documents WHERE document_id = ?`, docID).Scan(&blob)
	if err != nil {
		return nil, err
	}
	return deserializeFloat32(blob), nil
}

// deserializeFloat32 is the inverse of serializeFloat32.
func deserializeFloat32(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// FindDocumentByNumber looks a document up by its register number.
// Returns (nil, nil) when no document carries that number.
func (s *Store) FindDocumentByNumber(ctx context.Context, number string) (*Document, error) {
	d := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, subject, doc_type, category, sender, receiver,
		       doc_date, note, attachment_path, created_at
		FROM documents WHERE number = ?
	`, number).Scan(&d.ID, &d.Number, &d.Subject, &d.DocType, &d.Category,
		&d.Sender, &d.Receiver, &d.DocDate, &d.Note, &d.AttachmentPath, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding document %q: %w", number, err)
	}
	return d, nil
}
