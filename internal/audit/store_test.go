package audit

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsheet/internal/llm"
)

func TestStorePersistsOneRowPerAttempt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	store, err := Open(path, nil, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	store.Record(llm.AuditEntry{RequestID: "req-1", Attempt: 1, Prompt: `{"user":"x"}`, Error: "status 503", Timestamp: now})
	store.Record(llm.AuditEntry{RequestID: "req-1", Attempt: 2, Prompt: `{"user":"x"}`, Response: `{"a":1}`, Timestamp: now})
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM model_calls WHERE request_id = 'req-1'`).Scan(&count))
	assert.Equal(t, 2, count)

	var response sql.NullString
	var redacted int
	require.NoError(t, db.QueryRow(
		`SELECT response, redacted FROM model_calls WHERE attempt = 2`).Scan(&response, &redacted))
	assert.Equal(t, `{"a":1}`, response.String)
	assert.Equal(t, 0, redacted)
}

func TestStoreRedactsBeforePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	redactor, err := NewRedactor([]string{`sk-[A-Za-z0-9]+`})
	require.NoError(t, err)

	store, err := Open(path, redactor, nil)
	require.NoError(t, err)

	store.Record(llm.AuditEntry{RequestID: "req-2", Attempt: 1, Prompt: `key sk-secret99`, Response: `ok sk-secret99`})
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var prompt, response string
	var redacted int
	require.NoError(t, db.QueryRow(
		`SELECT prompt, response, redacted FROM model_calls WHERE request_id = 'req-2'`).
		Scan(&prompt, &response, &redacted))
	assert.Equal(t, "key [REDACTED]", prompt)
	assert.Equal(t, "ok [REDACTED]", response)
	assert.Equal(t, 1, redacted)
}
