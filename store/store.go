// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
)

const (
	createJobsTableSQL = `
CREATE TABLE IF NOT EXISTS generation_jobs (
    job_id VARCHAR(64) PRIMARY KEY,
    teacher_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL,
    collection_key VARCHAR(128) NOT NULL,
    requirements_json TEXT NOT NULL,
    phase VARCHAR(32) NOT NULL,
    draft_json TEXT,
    error_text TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`
	createJobsCourseIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_generation_jobs_course_id ON generation_jobs(course_id)`

	createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS tutor_sessions (
    session_id VARCHAR(64) PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    activity_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL,
    starter_json TEXT NOT NULL,
    cognitive_json TEXT NOT NULL,
    is_active BOOLEAN NOT NULL,
    created_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP
)`
	createSessionsStudentIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_tutor_sessions_student_id ON tutor_sessions(student_id)`

	createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS messages (
    message_id VARCHAR(64) PRIMARY KEY,
    session_id VARCHAR(64) NOT NULL,
    sender VARCHAR(16) NOT NULL,
    content TEXT NOT NULL,
    code_snapshot TEXT,
    error_context_json TEXT,
    phase VARCHAR(32) NOT NULL,
    frustration REAL NOT NULL,
    understanding REAL NOT NULL,
    degraded BOOLEAN NOT NULL,
    created_at TIMESTAMP NOT NULL
)`
	createMessagesSessionIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id, created_at)`

	createAuditsTableSQL = `
CREATE TABLE IF NOT EXISTS pedagogical_audits (
    analysis_id VARCHAR(64) PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    activity_id VARCHAR(64),
    risk_score REAL NOT NULL,
    risk_level VARCHAR(16) NOT NULL,
    diagnosis_category VARCHAR(32) NOT NULL,
    diagnosis TEXT NOT NULL,
    evidence_json TEXT NOT NULL,
    intervention TEXT NOT NULL,
    confidence REAL NOT NULL,
    status VARCHAR(16) NOT NULL,
    failure_reason TEXT,
    created_at TIMESTAMP NOT NULL
)`
	createAuditsStudentIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_pedagogical_audits_student_id ON pedagogical_audits(student_id, created_at)`
)

// Store is the append-only SQL-backed trace & job store (§4.X). Messages
// are never updated after insert; a job's phase transition to PUBLISHED
// commits atomically via WithTx. The catalog write it pairs with is an
// external call outside this database, made safe to retry by the
// catalog's own job_id idempotency rather than by a shared sql.Tx.
type Store struct {
	db      *sql.DB
	dialect string
}

// Open connects to cfg.DSN using cfg.Dialect and creates the schema if
// it does not already exist.
func Open(cfg config.StoreConfig) (*Store, error) {
	dialect := cfg.Dialect
	if dialect == "sqlite3" {
		dialect = "sqlite"
	}
	driver := dialect
	if dialect == "sqlite" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to open database", err)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		createJobsTableSQL, createJobsCourseIndexSQL,
		createSessionsTableSQL, createSessionsStudentIndexSQL,
		createMessagesTableSQL, createMessagesSessionIndexSQL,
		createAuditsTableSQL, createAuditsStudentIndexSQL,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to initialize schema", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// q rewrites a ?-placeholder query for the store's dialect.
func (s *Store) q(query string) string {
	if s.dialect == "postgres" {
		return convertToPostgresPlaceholders(query)
	}
	return query
}

func convertToPostgresPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 20)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------
// GenerationJob
// ---------------------------------------------------------------------

// SaveJob upserts a GenerationJob keyed on JobID.
func (s *Store) SaveJob(ctx context.Context, job *GenerationJob) error {
	reqJSON, err := json.Marshal(job.Requirements)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize requirements", err)
	}
	var draftJSON []byte
	if job.Draft != nil {
		draftJSON, err = json.Marshal(job.Draft)
		if err != nil {
			return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize draft", err)
		}
	}

	var upsert string
	switch s.dialect {
	case "postgres":
		upsert = `
INSERT INTO generation_jobs (job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
    phase = EXCLUDED.phase, draft_json = EXCLUDED.draft_json,
    error_text = EXCLUDED.error_text, updated_at = EXCLUDED.updated_at`
	case "mysql":
		upsert = `
INSERT INTO generation_jobs (job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    phase = VALUES(phase), draft_json = VALUES(draft_json),
    error_text = VALUES(error_text), updated_at = VALUES(updated_at)`
	default:
		upsert = `
INSERT INTO generation_jobs (job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    phase = excluded.phase, draft_json = excluded.draft_json,
    error_text = excluded.error_text, updated_at = excluded.updated_at`
	}

	_, err = s.db.ExecContext(ctx, s.q(upsert),
		job.JobID, job.TeacherID, job.CourseID, job.CollectionKey, string(reqJSON),
		string(job.Phase), nullableString(draftJSON), job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to save job", err)
	}
	return nil
}

// GetJob retrieves a GenerationJob by ID, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*GenerationJob, error) {
	query := s.q(`
SELECT job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at
FROM generation_jobs WHERE job_id = ?`)

	var job GenerationJob
	var reqJSON, draftJSON sql.NullString
	var errText sql.NullString
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.JobID, &job.TeacherID, &job.CourseID, &job.CollectionKey, &reqJSON,
		&job.Phase, &draftJSON, &errText, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, coreerrors.New(coreerrors.ErrNotFound, "store: job not found: "+jobID)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to query job", err)
	}

	if reqJSON.Valid {
		if err := json.Unmarshal([]byte(reqJSON.String), &job.Requirements); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode requirements", err)
		}
	}
	if draftJSON.Valid && draftJSON.String != "" {
		if err := json.Unmarshal([]byte(draftJSON.String), &job.Draft); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode draft", err)
		}
	}
	job.Error = errText.String
	return &job, nil
}

// JobsByPhase returns every GenerationJob currently in the given phase,
// for checkpoint-recovery scans on process restart.
func (s *Store) JobsByPhase(ctx context.Context, phase JobPhase) ([]GenerationJob, error) {
	query := s.q(`
SELECT job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at
FROM generation_jobs WHERE phase = ?`)

	rows, err := s.db.QueryContext(ctx, query, phase)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to query jobs by phase", err)
	}
	defer rows.Close()

	var out []GenerationJob
	for rows.Next() {
		var job GenerationJob
		var reqJSON, draftJSON, errText sql.NullString
		if err := rows.Scan(&job.JobID, &job.TeacherID, &job.CourseID, &job.CollectionKey, &reqJSON,
			&job.Phase, &draftJSON, &errText, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to scan job", err)
		}
		if reqJSON.Valid {
			if err := json.Unmarshal([]byte(reqJSON.String), &job.Requirements); err != nil {
				return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode requirements", err)
			}
		}
		if draftJSON.Valid && draftJSON.String != "" {
			if err := json.Unmarshal([]byte(draftJSON.String), &job.Draft); err != nil {
				return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode draft", err)
			}
		}
		job.Error = errText.String
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed iterating jobs", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------
// TutorSession
// ---------------------------------------------------------------------

// SaveSession upserts a TutorSession keyed on SessionID.
func (s *Store) SaveSession(ctx context.Context, sess *TutorSession) error {
	starterJSON, err := json.Marshal(sess.Starter)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize starter context", err)
	}
	cogJSON, err := json.Marshal(sess.Cognitive)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize cognitive state", err)
	}

	var upsert string
	switch s.dialect {
	case "postgres":
		upsert = `
INSERT INTO tutor_sessions (session_id, student_id, activity_id, course_id, starter_json, cognitive_json, is_active, created_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
    cognitive_json = EXCLUDED.cognitive_json, is_active = EXCLUDED.is_active, ended_at = EXCLUDED.ended_at`
	case "mysql":
		upsert = `
INSERT INTO tutor_sessions (session_id, student_id, activity_id, course_id, starter_json, cognitive_json, is_active, created_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    cognitive_json = VALUES(cognitive_json), is_active = VALUES(is_active), ended_at = VALUES(ended_at)`
	default:
		upsert = `
INSERT INTO tutor_sessions (session_id, student_id, activity_id, course_id, starter_json, cognitive_json, is_active, created_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    cognitive_json = excluded.cognitive_json, is_active = excluded.is_active, ended_at = excluded.ended_at`
	}

	_, err = s.db.ExecContext(ctx, s.q(upsert),
		sess.SessionID, sess.StudentID, sess.ActivityID, sess.CourseID,
		string(starterJSON), string(cogJSON), sess.IsActive, sess.CreatedAt, sess.EndedAt)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to save session", err)
	}
	return nil
}

// GetSession retrieves a TutorSession by ID, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*TutorSession, error) {
	query := s.q(`
SELECT session_id, student_id, activity_id, course_id, starter_json, cognitive_json, is_active, created_at, ended_at
FROM tutor_sessions WHERE session_id = ?`)

	var sess TutorSession
	var starterJSON, cogJSON string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&sess.SessionID, &sess.StudentID, &sess.ActivityID, &sess.CourseID,
		&starterJSON, &cogJSON, &sess.IsActive, &sess.CreatedAt, &sess.EndedAt)
	if err == sql.ErrNoRows {
		return nil, coreerrors.New(coreerrors.ErrNotFound, "store: session not found: "+sessionID)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to query session", err)
	}
	if err := json.Unmarshal([]byte(starterJSON), &sess.Starter); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode starter context", err)
	}
	if err := json.Unmarshal([]byte(cogJSON), &sess.Cognitive); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode cognitive state", err)
	}
	return &sess, nil
}

// ---------------------------------------------------------------------
// Message — append-only
// ---------------------------------------------------------------------

// AppendMessage inserts a Message. Messages are never updated thereafter.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	var errCtxJSON []byte
	if msg.ErrorContext != nil {
		var err error
		errCtxJSON, err = json.Marshal(msg.ErrorContext)
		if err != nil {
			return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize error context", err)
		}
	}

	query := s.q(`
INSERT INTO messages (message_id, session_id, sender, content, code_snapshot, error_context_json, phase, frustration, understanding, degraded, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		msg.MessageID, msg.SessionID, msg.Sender, msg.Content, msg.CodeSnapshot,
		nullableString(errCtxJSON), msg.Phase, msg.Frustration, msg.Understanding, msg.Degraded, msg.CreatedAt)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to append message", err)
	}
	return nil
}

// History returns the last limit Messages for sessionID in chronological
// order (oldest first), or all of them if limit <= 0.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	query := `
SELECT message_id, session_id, sender, content, code_snapshot, error_context_json, phase, frustration, understanding, degraded, created_at
FROM messages WHERE session_id = ? ORDER BY created_at DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to query history", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var codeSnapshot, errCtxJSON sql.NullString
		if err := rows.Scan(&m.MessageID, &m.SessionID, &m.Sender, &m.Content, &codeSnapshot,
			&errCtxJSON, &m.Phase, &m.Frustration, &m.Understanding, &m.Degraded, &m.CreatedAt); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to scan message", err)
		}
		if codeSnapshot.Valid {
			v := codeSnapshot.String
			m.CodeSnapshot = &v
		}
		if errCtxJSON.Valid && errCtxJSON.String != "" {
			var ec ErrorContext
			if err := json.Unmarshal([]byte(errCtxJSON.String), &ec); err != nil {
				return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode error context", err)
			}
			m.ErrorContext = &ec
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed iterating history", err)
	}

	// Reverse to chronological order: the query fetched newest-first so
	// LIMIT bounds to the most recent window.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MessagesByStudent returns the last limit Messages across every session
// belonging to studentID, newest-last, optionally scoped to one
// activityID (§4.A step 1's per-student trace window). Sessions carry
// student/activity identity; messages only carry session_id, so this
// joins through tutor_sessions rather than duplicating those columns
// onto every message row.
func (s *Store) MessagesByStudent(ctx context.Context, studentID string, activityID *string, limit int) ([]Message, error) {
	query := `
SELECT m.message_id, m.session_id, m.sender, m.content, m.code_snapshot, m.error_context_json, m.phase, m.frustration, m.understanding, m.degraded, m.created_at
FROM messages m
JOIN tutor_sessions ts ON ts.session_id = m.session_id
WHERE ts.student_id = ?`
	args := []any{studentID}
	if activityID != nil {
		query += ` AND ts.activity_id = ?`
		args = append(args, *activityID)
	}
	query += ` ORDER BY m.created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to query messages by student", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var codeSnapshot, errCtxJSON sql.NullString
		if err := rows.Scan(&m.MessageID, &m.SessionID, &m.Sender, &m.Content, &codeSnapshot,
			&errCtxJSON, &m.Phase, &m.Frustration, &m.Understanding, &m.Degraded, &m.CreatedAt); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to scan message", err)
		}
		if codeSnapshot.Valid {
			v := codeSnapshot.String
			m.CodeSnapshot = &v
		}
		if errCtxJSON.Valid && errCtxJSON.String != "" {
			var ec ErrorContext
			if err := json.Unmarshal([]byte(errCtxJSON.String), &ec); err != nil {
				return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode error context", err)
			}
			m.ErrorContext = &ec
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed iterating messages by student", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ---------------------------------------------------------------------
// PedagogicalAudit
// ---------------------------------------------------------------------

// SaveAudit inserts a PedagogicalAudit. Audits are append-only.
func (s *Store) SaveAudit(ctx context.Context, audit *PedagogicalAudit) error {
	evidenceJSON, err := json.Marshal(audit.EvidenceQuotes)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize evidence", err)
	}

	query := s.q(`
INSERT INTO pedagogical_audits (analysis_id, student_id, activity_id, risk_score, risk_level, diagnosis_category, diagnosis, evidence_json, intervention, confidence, status, failure_reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		audit.AnalysisID, audit.StudentID, audit.ActivityID, audit.RiskScore, audit.RiskLevel,
		audit.DiagnosisCategory, audit.Diagnosis, string(evidenceJSON), audit.Intervention,
		audit.Confidence, audit.Status, nullIfEmpty(audit.FailureReason), audit.CreatedAt)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to save audit", err)
	}
	return nil
}

// RecentAudits returns the most recent audits for studentID within
// `since`, newest first, bounded by limit.
func (s *Store) RecentAudits(ctx context.Context, studentID string, since time.Time, limit int) ([]PedagogicalAudit, error) {
	query := s.q(`
SELECT analysis_id, student_id, activity_id, risk_score, risk_level, diagnosis_category, diagnosis, evidence_json, intervention, confidence, status, failure_reason, created_at
FROM pedagogical_audits WHERE student_id = ? AND created_at >= ? ORDER BY created_at DESC LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, studentID, since, limit)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to query audits", err)
	}
	defer rows.Close()

	var out []PedagogicalAudit
	for rows.Next() {
		var a PedagogicalAudit
		var evidenceJSON string
		var activityID, failureReason sql.NullString
		if err := rows.Scan(&a.AnalysisID, &a.StudentID, &activityID, &a.RiskScore, &a.RiskLevel,
			&a.DiagnosisCategory, &a.Diagnosis, &evidenceJSON, &a.Intervention, &a.Confidence,
			&a.Status, &failureReason, &a.CreatedAt); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to scan audit", err)
		}
		if activityID.Valid {
			v := activityID.String
			a.ActivityID = &v
		}
		a.FailureReason = failureReason.String
		if err := json.Unmarshal([]byte(evidenceJSON), &a.EvidenceQuotes); err != nil {
			return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to decode evidence", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed iterating audits", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------

// Tx is the subset of *Store operations valid inside WithTx: the
// PUBLISHED transition commits atomically on the store's own side (§4.J).
type Tx struct {
	store *Store
	tx    *sql.Tx
}

// SaveJob upserts the job within the transaction.
func (t *Tx) SaveJob(ctx context.Context, job *GenerationJob) error {
	return (&txExecer{t.tx}).saveJob(ctx, t.store, job)
}

// WithTx runs fn inside a transaction, committing only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &Tx{store: s, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to commit transaction", err)
	}
	return nil
}

// txExecer runs the job upsert against a *sql.Tx instead of the pooled
// *sql.DB; its query text is a copy of SaveJob's.
type txExecer struct {
	tx *sql.Tx
}

func (e *txExecer) saveJob(ctx context.Context, s *Store, job *GenerationJob) error {
	reqJSON, err := json.Marshal(job.Requirements)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize requirements", err)
	}
	var draftJSON []byte
	if job.Draft != nil {
		draftJSON, err = json.Marshal(job.Draft)
		if err != nil {
			return coreerrors.Wrap(coreerrors.ErrRequest, "store: failed to serialize draft", err)
		}
	}

	var upsert string
	switch s.dialect {
	case "postgres":
		upsert = `
INSERT INTO generation_jobs (job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
    phase = EXCLUDED.phase, draft_json = EXCLUDED.draft_json,
    error_text = EXCLUDED.error_text, updated_at = EXCLUDED.updated_at`
	case "mysql":
		upsert = `
INSERT INTO generation_jobs (job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    phase = VALUES(phase), draft_json = VALUES(draft_json),
    error_text = VALUES(error_text), updated_at = VALUES(updated_at)`
	default:
		upsert = `
INSERT INTO generation_jobs (job_id, teacher_id, course_id, collection_key, requirements_json, phase, draft_json, error_text, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    phase = excluded.phase, draft_json = excluded.draft_json,
    error_text = excluded.error_text, updated_at = excluded.updated_at`
	}

	_, err = e.tx.ExecContext(ctx, s.q(upsert),
		job.JobID, job.TeacherID, job.CourseID, job.CollectionKey, string(reqJSON),
		string(job.Phase), nullableString(draftJSON), job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ErrUpstream, "store: failed to save job in transaction", err)
	}
	return nil
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
