// Package storage persists interview sessions, their transcript
// messages, and captured-media artifact rows in a local SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openhire/openhire-agent/internal/capture"
	"github.com/openhire/openhire-agent/internal/interview"
)

const (
	DebriefPending   = "pending"
	DebriefRunning   = "running"
	DebriefCompleted = "completed"
	DebriefFailed    = "failed"
)

// Interview is the persisted view of one interview session.
type Interview struct {
	ID            string     `json:"id"`
	CandidateID   string     `json:"candidate_id"`
	CandidateName string     `json:"candidate_name"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Status        string     `json:"status"`
	Assessment    string     `json:"assessment"`
	Debrief       string     `json:"debrief"`
	DebriefStatus string     `json:"debrief_status"`
	AudioPath     string     `json:"audio_path"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "openhire-agent.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL DEFAULT '',
			candidate_name TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			assessment TEXT NOT NULL DEFAULT '',
			debrief TEXT NOT NULL DEFAULT '',
			debrief_status TEXT NOT NULL DEFAULT 'pending',
			audio_path TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create interviews table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			interview_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			question_number INTEGER NOT NULL DEFAULT 0,
			question_type TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			FOREIGN KEY(interview_id) REFERENCES interviews(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			interview_id TEXT NOT NULL UNIQUE,
			image_urls TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS debrief_requests (
			interview_id TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(interview_id, prompt_hash)
		);
	`); err != nil {
		return fmt.Errorf("create debrief_requests table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_interviews_started_at ON interviews(started_at)"); err != nil {
		return fmt.Errorf("create interviews index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_interview_id ON messages(interview_id, id)"); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateInterview(id, candidateID string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("interview id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO interviews(id, candidate_id, started_at, status, debrief_status) VALUES(?, ?, ?, 'active', ?)`,
		id,
		candidateID,
		startedAt.UTC().Format(time.RFC3339Nano),
		DebriefPending,
	)
	if err != nil {
		return fmt.Errorf("create interview %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SetCandidateName(id, name string) error {
	res, err := s.db.Exec(`UPDATE interviews SET candidate_name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("set candidate name for interview %s: %w", id, err)
	}
	return requireRow(res)
}

// EndInterview marks the interview finished. assessment is the raw
// JSON of the final assessment, or "" when the session ended without
// one.
func (s *SQLiteStore) EndInterview(id string, endedAt time.Time, status, assessment, audioPath string) error {
	res, err := s.db.Exec(
		`UPDATE interviews SET ended_at = ?, status = ?, assessment = ?, audio_path = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		status,
		assessment,
		audioPath,
		id,
	)
	if err != nil {
		return fmt.Errorf("end interview %s: %w", id, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) AppendMessage(interviewID string, msg interview.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages(interview_id, message_id, role, content, question_number, question_type, timestamp)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		interviewID,
		msg.ID,
		string(msg.Role),
		strings.TrimSpace(msg.Content),
		msg.QuestionNumber,
		msg.QuestionType,
		msg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append message for interview %s: %w", interviewID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(interviewID string) ([]interview.Message, error) {
	rows, err := s.db.Query(
		`SELECT message_id, role, content, question_number, question_type, timestamp
		 FROM messages
		 WHERE interview_id = ?
		 ORDER BY id ASC`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages for interview %s: %w", interviewID, err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]interview.Message, 0, 32)
	for rows.Next() {
		var msg interview.Message
		var role, ts string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.QuestionNumber, &msg.QuestionType, &ts); err != nil {
			return nil, fmt.Errorf("scan message for interview %s: %w", interviewID, err)
		}
		msg.Role = interview.Role(role)
		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse message timestamp for interview %s: %w", interviewID, err)
		}
		msg.Timestamp = parsedTS
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows for interview %s: %w", interviewID, err)
	}

	return messages, nil
}

func (s *SQLiteStore) GetInterview(id string) (Interview, error) {
	row := s.db.QueryRow(
		`SELECT id, candidate_id, candidate_name, started_at, ended_at, status, assessment, debrief, debrief_status, audio_path
		 FROM interviews WHERE id = ?`,
		id,
	)
	iv, err := scanInterview(row.Scan)
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", id, err)
	}
	return iv, nil
}

func (s *SQLiteStore) GetInterviewsByDate(date string) ([]Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, candidate_id, candidate_name, started_at, ended_at, status, assessment, debrief, debrief_status, audio_path
		 FROM interviews
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	interviews := make([]Interview, 0, 16)
	for rows.Next() {
		iv, err := scanInterview(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}

	return interviews, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM interviews ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) UpdateDebrief(interviewID, debrief, status string) error {
	res, err := s.db.Exec(
		`UPDATE interviews SET debrief = ?, debrief_status = ? WHERE id = ?`,
		debrief,
		status,
		interviewID,
	)
	if err != nil {
		return fmt.Errorf("update debrief for interview %s: %w", interviewID, err)
	}
	return requireRow(res)
}

// ClaimDebriefRequest records that a debrief with this prompt hash was
// requested. It reports false when an identical request already ran,
// which keeps retries from generating duplicate completions.
func (s *SQLiteStore) ClaimDebriefRequest(interviewID, promptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO debrief_requests(interview_id, prompt_hash) VALUES(?, ?)`,
		interviewID,
		promptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim debrief request for interview %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim debrief rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpdateArtifactImages implements capture.ArtifactStore. Zero rows
// affected means no artifact row exists for the interview yet.
func (s *SQLiteStore) UpdateArtifactImages(ctx context.Context, interviewID, imageURLs string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET image_urls = ? WHERE interview_id = ?`,
		imageURLs,
		interviewID,
	)
	if err != nil {
		return 0, fmt.Errorf("update artifact images for interview %s: %w", interviewID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("artifact update rows affected: %w", err)
	}
	return rows, nil
}

// CreateArtifact implements capture.ArtifactStore, mapping the UNIQUE
// constraint on interview_id to capture.ErrConflict.
func (s *SQLiteStore) CreateArtifact(ctx context.Context, a capture.Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts(interview_id, image_urls, status, recorded_at) VALUES(?, ?, ?, ?)`,
		a.InterviewID,
		a.ImageURLs,
		a.Status,
		a.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return capture.ErrConflict
		}
		return fmt.Errorf("create artifact for interview %s: %w", a.InterviewID, err)
	}
	return nil
}

// GetArtifact returns the artifact row for an interview, or
// sql.ErrNoRows wrapped when none exists.
func (s *SQLiteStore) GetArtifact(interviewID string) (capture.Artifact, error) {
	row := s.db.QueryRow(
		`SELECT interview_id, image_urls, status, recorded_at FROM artifacts WHERE interview_id = ?`,
		interviewID,
	)
	var a capture.Artifact
	var recordedAt string
	if err := row.Scan(&a.InterviewID, &a.ImageURLs, &a.Status, &recordedAt); err != nil {
		return capture.Artifact{}, fmt.Errorf("query artifact for interview %s: %w", interviewID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return capture.Artifact{}, fmt.Errorf("parse artifact recorded_at for interview %s: %w", interviewID, err)
	}
	a.RecordedAt = ts
	return a, nil
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanInterview(scan func(dest ...any) error) (Interview, error) {
	var iv Interview
	var startedAt string
	var endedAt sql.NullString
	if err := scan(&iv.ID, &iv.CandidateID, &iv.CandidateName, &startedAt, &endedAt,
		&iv.Status, &iv.Assessment, &iv.Debrief, &iv.DebriefStatus, &iv.AudioPath); err != nil {
		return Interview{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse started_at: %w", err)
	}
	iv.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Interview{}, fmt.Errorf("parse ended_at: %w", err)
		}
		iv.EndedAt = &parsedEnd
	}

	return iv, nil
}
