package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Document registry (official-document metadata, populated by the CRUD layer)
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    number TEXT NOT NULL,
    subject TEXT NOT NULL,
    doc_type TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    sender TEXT NOT NULL DEFAULT '',
    receiver TEXT NOT NULL DEFAULT '',
    doc_date TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    attachment_path TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Vector embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
    document_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    subject,
    note,
    sender,
    receiver,
    content='documents',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, subject, note, sender, receiver)
    VALUES (new.id, new.subject, new.note, new.sender, new.receiver);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, subject, note, sender, receiver)
    VALUES ('delete', old.id, old.subject, old.note, old.sender, old.receiver);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, subject, note, sender, receiver)
    VALUES ('delete', old.id, old.subject, old.note, old.sender, old.receiver);
    INSERT INTO documents_fts(rowid, subject, note, sender, receiver)
    VALUES (new.id, new.subject, new.note, new.sender, new.receiver);
END;

-- Knowledge graph: canonical entities (deduplicated, never deleted)
CREATE TABLE IF NOT EXISTS canonical_entities (
    id INTEGER PRIMARY KEY,
    canonical_name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    aliases JSON NOT NULL DEFAULT '[]',
    mention_count INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(canonical_name, entity_type)
);

-- Entity mentions per document (idempotent by primary key)
CREATE TABLE IF NOT EXISTS document_entity_mentions (
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    entity_id INTEGER NOT NULL REFERENCES canonical_entities(id) ON DELETE CASCADE,
    surface_text TEXT NOT NULL DEFAULT '',
    extracted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (document_id, entity_id)
);

-- Relations between canonical entities, sourced from one document
CREATE TABLE IF NOT EXISTS entity_relations (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    source_entity_id INTEGER NOT NULL REFERENCES canonical_entities(id) ON DELETE CASCADE,
    target_entity_id INTEGER NOT NULL REFERENCES canonical_entities(id) ON DELETE CASCADE,
    relation_label TEXT NOT NULL
);

-- Raw NER output per document, read by the ingestion pipeline
CREATE TABLE IF NOT EXISTS document_extractions (
    document_id INTEGER PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
    payload JSON NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- The "already extracted" set, committed in batches by the scheduler
CREATE TABLE IF NOT EXISTS extracted_documents (
    document_id INTEGER PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
    extracted_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Query audit log
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT,
    source_count INTEGER DEFAULT 0,
    model_used TEXT,
    latency_ms INTEGER DEFAULT 0,
    prompt_tokens INTEGER DEFAULT 0,
    completion_tokens INTEGER DEFAULT 0,
    total_tokens INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_documents_sender ON documents(sender);
CREATE INDEX IF NOT EXISTS idx_documents_doc_date ON documents(doc_date);
CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type);
CREATE INDEX IF NOT EXISTS idx_entities_type ON canonical_entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_mentions_entity ON document_entity_mentions(entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_document ON entity_relations(document_id);
CREATE INDEX IF NOT EXISTS idx_relations_source ON entity_relations(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON entity_relations(target_entity_id);
`, embeddingDim)
}
