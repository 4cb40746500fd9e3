package docstore

// Document queries
const (
	GetDocumentSQL = `
		SELECT data, version, updated_at
		FROM documents
		WHERE collection = $1 AND doc_id = $2`

	ListDocumentsSQL = `
		SELECT doc_id, data, version, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY doc_id`

	GetDocumentForUpdateSQL = `
		SELECT data, version, updated_at
		FROM documents
		WHERE collection = $1 AND doc_id = $2
		FOR UPDATE`

	UpsertDocumentSQL = `
		INSERT INTO documents (collection, doc_id, data, version, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (collection, doc_id) DO UPDATE SET
			data = EXCLUDED.data,
			version = documents.version + 1,
			updated_at = NOW()
		RETURNING version, updated_at`

	InsertDocumentSQL = `
		INSERT INTO documents (collection, doc_id, data, version, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (collection, doc_id) DO NOTHING
		RETURNING version, updated_at`

	CompareAndPutSQL = `
		UPDATE documents
		SET data = $3, version = version + 1, updated_at = NOW()
		WHERE collection = $1 AND doc_id = $2 AND version = $4
		RETURNING version, updated_at`

	UpdateDocumentSQL = `
		UPDATE documents
		SET data = $3, version = version + 1, updated_at = NOW()
		WHERE collection = $1 AND doc_id = $2
		RETURNING version, updated_at`
)
