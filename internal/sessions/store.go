// Package sessions keeps the history of transcriptions and exercise attempts.
package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/ortheloquence/internal/config"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	_ "modernc.org/sqlite"
)

const (
	TypeTranscription = "transcription"
	TypeExercise      = "exercise"

	DefaultUser = "anonymous"

	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrInvalidRecord = errors.New("invalid session record")

// Record is one history entry. Transcription and exercise fields are optional.
type Record struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Date time.Time `json:"date"`
	User string    `json:"user"`

	Original     *string        `json:"original,omitempty"`
	Corrected    *string        `json:"corrected,omitempty"`
	WordCount    *int           `json:"wordCount,omitempty"`
	SpeakingTime *float64       `json:"speakingTime,omitempty"`
	SpeechRate   *float64       `json:"speechRate,omitempty"`
	TicCounts    map[string]int `json:"ticCounts,omitempty"`

	ExerciseCategory          *string                       `json:"exerciseCategory,omitempty"`
	ExerciseQuestion          *string                       `json:"exerciseQuestion,omitempty"`
	ExerciseAnswer            *string                       `json:"exerciseAnswer,omitempty"`
	ExerciseScore             *int                          `json:"exerciseScore,omitempty"`
	ExerciseCorrections       []protocol.Correction         `json:"exerciseCorrections,omitempty"`
	ExerciseTranscriptionData *protocol.TranscriptionResult `json:"exerciseTranscriptionData,omitempty"`
}

// Store is backed by SQLite, or by memory when retention mode is ephemeral.
type Store struct {
	db    *sql.DB
	cfg   config.SessionStoreConfig
	log   *slog.Logger
	clock func() time.Time

	mu     sync.Mutex
	memory []Record
}

func Open(ctx context.Context, cfg config.SessionStoreConfig, log *slog.Logger) (*Store, error) {
	log = log.With(slog.String("component", "session-store"))
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("session store vacuum failed", slogError(err))
		}
	}
	if _, err := s.Prune(ctx); err != nil {
		log.Warn("session store prune on start failed", slogError(err))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    session_type TEXT NOT NULL,
    user_name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_type_created ON sessions(session_type, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persistent reports whether records survive a restart.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Add stores rec under a new id and returns it. Any client id is ignored and a
// zero date defaults to now.
func (s *Store) Add(ctx context.Context, rec Record) (string, error) {
	if rec.Type != TypeTranscription && rec.Type != TypeExercise {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, rec.Type)
	}
	rec.ID = uuid.NewString()
	if rec.User == "" {
		rec.User = DefaultUser
	}
	if rec.Date.IsZero() {
		rec.Date = s.clock()
	}
	rec.Date = rec.Date.UTC()

	if s.db == nil {
		s.mu.Lock()
		s.memory = append(s.memory, rec)
		s.mu.Unlock()
		if _, err := s.Prune(ctx); err != nil {
			return "", err
		}
		return rec.ID, nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, session_type, user_name, created_at, payload) VALUES(?, ?, ?, ?, ?)`,
		rec.ID, rec.Type, rec.User, rec.Date.Format(timeLayout), payload)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return rec.ID, nil
}

// List returns records newest first. An empty kind returns every type.
func (s *Store) List(ctx context.Context, kind string) ([]Record, error) {
	if s.db == nil {
		s.mu.Lock()
		out := make([]Record, 0, len(s.memory))
		for _, rec := range s.memory {
			if kind == "" || rec.Type == kind {
				out = append(out, rec)
			}
		}
		s.mu.Unlock()
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
		return out, nil
	}

	query := `SELECT payload FROM sessions ORDER BY created_at DESC`
	args := []any{}
	if kind != "" {
		query = `SELECT payload FROM sessions WHERE session_type = ? ORDER BY created_at DESC`
		args = append(args, kind)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			s.log.Warn("skipping undecodable session", slogError(err))
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteAll removes every record and reports how many were deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	if s.db == nil {
		s.mu.Lock()
		n := int64(len(s.memory))
		s.memory = nil
		s.mu.Unlock()
		return n, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return res.RowsAffected()
}

// Prune applies retention_days and max_sessions and reports how many records were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	var cutoff time.Time
	if s.cfg.RetentionDays > 0 {
		cutoff = s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		before := len(s.memory)
		kept := s.memory[:0]
		for _, rec := range s.memory {
			if cutoff.IsZero() || !rec.Date.Before(cutoff) {
				kept = append(kept, rec)
			}
		}
		if limit := s.cfg.MaxSessions; limit > 0 && len(kept) > limit {
			sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })
			kept = append([]Record(nil), kept[len(kept)-limit:]...)
		}
		s.memory = kept
		return int64(before - len(kept)), nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var removed int64
	if !cutoff.IsZero() {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.Format(timeLayout))
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if s.cfg.MaxSessions > 0 {
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("pruned session history", slog.Int64("removed", removed))
	}
	return removed, nil
}

// FromTranscription builds a history record for a completed transcription.
func FromTranscription(user string, res protocol.TranscriptionResult) Record {
	return Record{
		Type:         TypeTranscription,
		User:         user,
		Original:     &res.Transcription,
		Corrected:    &res.CorrectedTranscription,
		WordCount:    &res.WordCount,
		SpeakingTime: &res.DurationSec,
		SpeechRate:   &res.SpeechRate,
		TicCounts:    res.TicCounts,
	}
}

// FromEvaluation builds a history record for a scored exercise attempt.
func FromEvaluation(req protocol.EvaluationRequest, res protocol.EvaluationResult) Record {
	return Record{
		Type:                      TypeExercise,
		User:                      req.User,
		ExerciseCategory:          &req.Category,
		ExerciseQuestion:          &req.Question,
		ExerciseAnswer:            &req.Answer,
		ExerciseScore:             &res.Score,
		ExerciseCorrections:       res.Corrections,
		ExerciseTranscriptionData: res.TranscriptionData,
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
