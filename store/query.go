package store

import (
	"context"
	"strings"
)

// DocumentQuery is a fluent builder for ranked document retrieval. It
// assembles one SQL statement combining vector-distance ordering (when an
// embedding is supplied) with an FTS5 keyword rank hint and optional
// equality/range filters.
type DocumentQuery struct {
	embedding    []float32
	vectorWeight float64
	terms        []string
	termWeight   float64
	sender       string
	receiver     string
	docType      string
	category     string
	dateFrom     string
	dateTo       string
	limit        int
}

// NewDocumentQuery creates an empty query with a default limit of 10.
func NewDocumentQuery() *DocumentQuery {
	return &DocumentQuery{vectorWeight: 1.0, termWeight: 0.5, limit: 10}
}

// WithEmbedding sets the query vector and its blending weight.
func (q *DocumentQuery) WithEmbedding(embedding []float32, weight float64) *DocumentQuery {
	q.embedding = embedding
	if weight > 0 {
		q.vectorWeight = weight
	}
	return q
}

// WithTerms sets keyword terms, OR-matched across the FTS field set,
// and their blending weight.
func (q *DocumentQuery) WithTerms(terms []string, weight float64) *DocumentQuery {
	q.terms = terms
	if weight > 0 {
		q.termWeight = weight
	}
	return q
}

// WithSender filters by exact sender.
func (q *DocumentQuery) WithSender(sender string) *DocumentQuery {
	q.sender = sender
	return q
}

// WithReceiver filters by exact receiver.
func (q *DocumentQuery) WithReceiver(receiver string) *DocumentQuery {
	q.receiver = receiver
	return q
}

// WithDocType filters by exact document type.
func (q *DocumentQuery) WithDocType(docType string) *DocumentQuery {
	q.docType = docType
	return q
}

// WithCategory filters by exact category.
func (q *DocumentQuery) WithCategory(category string) *DocumentQuery {
	q.category = category
	return q
}

// WithDateRange filters doc_date to [from, to]. Either bound may be empty.
func (q *DocumentQuery) WithDateRange(from, to string) *DocumentQuery {
	q.dateFrom = from
	q.dateTo = to
	return q
}

// Limit caps the number of returned rows.
func (q *DocumentQuery) Limit(n int) *DocumentQuery {
	if n > 0 {
		q.limit = n
	}
	return q
}

// ftsMatchExpr renders the terms as an OR query for FTS5. Terms are
// double-quoted so punctuation inside a term cannot break the match syntax.
func (q *DocumentQuery) ftsMatchExpr() string {
	quoted := make([]string, 0, len(q.terms))
	for _, t := range q.terms {
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// build assembles the SQL statement and its arguments.
//
// With an embedding, the statement is anchored on the vec0 KNN scan and
// blends vector distance with the FTS rank (both ascending, FTS5 rank is
// negative for better matches):
//
//	ORDER BY (v.distance * wVec) + (COALESCE(f.rank, 0) * wKw)
//
// Without an embedding it is a plain filtered scan ordered by FTS rank
// when terms exist, else by recency.
func (q *DocumentQuery) build() (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	matchExpr := ""
	if len(q.terms) > 0 {
		matchExpr = q.ftsMatchExpr()
	}

	if q.embedding != nil {
		sb.WriteString(`
			SELECT d.id, d.number, d.subject, d.doc_type, d.category, d.sender, d.receiver,
				d.doc_date, d.note, v.distance, COALESCE(f.rank, 0)
			FROM vec_documents v
			JOIN documents d ON d.id = v.document_id`)
		if matchExpr != "" {
			sb.WriteString(`
			LEFT JOIN (SELECT rowid, rank FROM documents_fts WHERE documents_fts MATCH ?) f ON f.rowid = d.id`)
			args = append(args, matchExpr)
		} else {
			sb.WriteString(`
			LEFT JOIN (SELECT NULL AS rowid, NULL AS rank) f ON f.rowid = d.id`)
		}
		sb.WriteString(`
			WHERE v.embedding MATCH ? AND k = ?`)
		args = append(args, serializeFloat32(q.embedding), q.limit)
	} else {
		sb.WriteString(`
			SELECT d.id, d.number, d.subject, d.doc_type, d.category, d.sender, d.receiver,
				d.doc_date, d.note, 0.0, COALESCE(f.rank, 0)
			FROM documents d`)
		if matchExpr != "" {
			sb.WriteString(`
			JOIN (SELECT rowid, rank FROM documents_fts WHERE documents_fts MATCH ?) f ON f.rowid = d.id`)
			args = append(args, matchExpr)
		} else {
			sb.WriteString(`
			LEFT JOIN (SELECT NULL AS rowid, NULL AS rank) f ON f.rowid = d.id`)
		}
		sb.WriteString(`
			WHERE 1 = 1`)
	}

	if q.sender != "" {
		sb.WriteString(" AND d.sender = ?")
		args = append(args, q.sender)
	}
	if q.receiver != "" {
		sb.WriteString(" AND d.receiver = ?")
		args = append(args, q.receiver)
	}
	if q.docType != "" {
		sb.WriteString(" AND d.doc_type = ?")
		args = append(args, q.docType)
	}
	if q.category != "" {
		sb.WriteString(" AND d.category = ?")
		args = append(args, q.category)
	}
	if q.dateFrom != "" {
		sb.WriteString(" AND d.doc_date >= ?")
		args = append(args, q.dateFrom)
	}
	if q.dateTo != "" {
		sb.WriteString(" AND d.doc_date <= ?")
		args = append(args, q.dateTo)
	}

	switch {
	case q.embedding != nil:
		sb.WriteString(" ORDER BY (v.distance * ?) + (COALESCE(f.rank, 0) * ?)")
		args = append(args, q.vectorWeight, q.termWeight)
	case matchExpr != "":
		sb.WriteString(" ORDER BY f.rank")
	default:
		sb.WriteString(" ORDER BY d.created_at DESC, d.id DESC")
	}

	sb.WriteString(" LIMIT ?")
	args = append(args, q.limit)

	return sb.String(), args
}

// SearchDocuments executes a DocumentQuery and returns ranked results.
// Similarity is 1 - distance on the vector path and 0 otherwise;
// KeywordRank is the FTS5 rank negated so that higher means better.
func (s *Store) SearchDocuments(ctx context.Context, q *DocumentQuery) ([]RetrievalResult, error) {
	query, args := q.build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var distance, rank float64
		if err := rows.Scan(&r.DocumentID, &r.Number, &r.Subject, &r.DocType, &r.Category,
			&r.Sender, &r.Receiver, &r.DocDate, &r.Note, &distance, &rank); err != nil {
			return nil, err
		}
		if q.embedding != nil {
			r.Similarity = 1.0 - distance
		}
		r.KeywordRank = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}
