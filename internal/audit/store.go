package audit

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"fieldsheet/internal/llm"
)

// Schema for the model_calls table. Applied by Store.Init.
const Schema = `
CREATE TABLE IF NOT EXISTS model_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	prompt TEXT NOT NULL,
	response TEXT,
	error TEXT,
	redacted INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_model_calls_rid ON model_calls(request_id);
CREATE INDEX IF NOT EXISTS idx_model_calls_ts ON model_calls(timestamp);
`

// Store persists one row per model call attempt to SQLite, asynchronously so
// slow disk never backpressures an in-flight extraction.
type Store struct {
	db       *sql.DB
	redactor *Redactor
	log      *slog.Logger

	ch   chan llm.AuditEntry
	done chan struct{}
	once sync.Once
}

// Open opens (or creates) the audit database at path and starts the flush loop.
func Open(path string, redactor *Redactor, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:       db,
		redactor: redactor,
		log:      logger,
		ch:       make(chan llm.AuditEntry, 256),
		done:     make(chan struct{}),
	}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	go s.flushLoop()
	return s, nil
}

// Init creates the model_calls table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Record implements llm.Recorder. Non-blocking; drops with a warning if the
// buffer is full.
func (s *Store) Record(e llm.AuditEntry) {
	select {
	case s.ch <- e:
	default:
		s.log.Warn("audit.buffer_full", "request_id", e.RequestID, "attempt", e.Attempt)
	}
}

// Close drains the buffer, stops the flush goroutine, and closes the database.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return s.db.Close()
}

func (s *Store) flushLoop() {
	defer close(s.done)
	for e := range s.ch {
		s.persist(e)
	}
}

func (s *Store) persist(e llm.AuditEntry) {
	prompt, response, errMsg := e.Prompt, e.Response, e.Error
	redacted := false
	if s.redactor.Active() {
		prompt = s.redactor.Apply(prompt)
		response = s.redactor.Apply(response)
		errMsg = s.redactor.Apply(errMsg)
		redacted = true
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO model_calls (request_id, attempt, prompt, response, error, redacted, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Attempt, prompt, nullable(response), nullable(errMsg), boolInt(redacted), ts.UnixMicro(),
	)
	if err != nil {
		s.log.Error("audit.persist_error", "request_id", e.RequestID, "error", err)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
