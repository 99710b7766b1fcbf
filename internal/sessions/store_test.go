package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/ortheloquence/internal/config"
	"github.com/loqalabs/ortheloquence/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStores(t *testing.T, cfg config.SessionStoreConfig) map[string]*Store {
	t.Helper()
	stores := map[string]*Store{}
	for _, mode := range []string{"ephemeral", "persistent"} {
		c := cfg
		c.RetentionMode = mode
		c.Path = filepath.Join(t.TempDir(), "sessions.db")
		s, err := Open(context.Background(), c, newLogger())
		if err != nil {
			t.Fatalf("open %s store: %v", mode, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		stores[mode] = s
	}
	return stores
}

func at(day int) func() time.Time {
	return func() time.Time { return time.Date(2025, 1, day, 12, 0, 0, 0, time.UTC) }
}

func TestAddAndList(t *testing.T) {
	for mode, s := range openStores(t, config.SessionStoreConfig{}) {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			s.clock = at(1)
			res := protocol.TranscriptionResult{Transcription: "euh bonjour", CorrectedTranscription: "euh bonjour", WordCount: 2, TicCounts: map[string]int{"euh": 1}}
			first, err := s.Add(ctx, FromTranscription("", res))
			if err != nil {
				t.Fatalf("add: %v", err)
			}

			s.clock = at(2)
			req := protocol.EvaluationRequest{User: "camille", Category: "Grammar", Question: "Q", Answer: "A"}
			second, err := s.Add(ctx, FromEvaluation(req, protocol.EvaluationResult{Score: 90}))
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if first == second || first == "" {
				t.Fatalf("expected distinct ids, got %q and %q", first, second)
			}

			all, err := s.List(ctx, "")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(all) != 2 || all[0].ID != second || all[1].ID != first {
				t.Fatalf("expected newest first, got %+v", all)
			}
			if all[1].User != DefaultUser || *all[1].WordCount != 2 || all[1].TicCounts["euh"] != 1 {
				t.Fatalf("unexpected transcription record %+v", all[1])
			}
			if *all[0].ExerciseScore != 90 || *all[0].ExerciseCategory != "Grammar" {
				t.Fatalf("unexpected exercise record %+v", all[0])
			}

			exercises, err := s.List(ctx, TypeExercise)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(exercises) != 1 || exercises[0].ID != second {
				t.Fatalf("expected only the exercise record, got %+v", exercises)
			}
		})
	}
}

func TestAddIgnoresClientID(t *testing.T) {
	for mode, s := range openStores(t, config.SessionStoreConfig{}) {
		t.Run(mode, func(t *testing.T) {
			id, err := s.Add(context.Background(), Record{ID: "client-id", Type: TypeTranscription})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if id == "client-id" {
				t.Fatal("client supplied id should be replaced")
			}
		})
	}
}

func TestAddRejectsUnknownType(t *testing.T) {
	for mode, s := range openStores(t, config.SessionStoreConfig{}) {
		t.Run(mode, func(t *testing.T) {
			if _, err := s.Add(context.Background(), Record{Type: "note"}); !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestDeleteAll(t *testing.T) {
	for mode, s := range openStores(t, config.SessionStoreConfig{}) {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if _, err := s.Add(ctx, Record{Type: TypeTranscription}); err != nil {
					t.Fatalf("add: %v", err)
				}
			}
			n, err := s.DeleteAll(ctx)
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if n != 3 {
				t.Fatalf("expected 3 deleted, got %d", n)
			}
			left, _ := s.List(ctx, "")
			if len(left) != 0 {
				t.Fatalf("expected empty history, got %d", len(left))
			}
		})
	}
}

func TestPruneByDaysAndCount(t *testing.T) {
	for mode, s := range openStores(t, config.SessionStoreConfig{RetentionDays: 1, MaxSessions: 2}) {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			s.clock = at(1)
			if _, err := s.Add(ctx, Record{Type: TypeTranscription}); err != nil {
				t.Fatalf("add: %v", err)
			}
			s.clock = at(5)
			var last string
			for i := 0; i < 3; i++ {
				id, err := s.Add(ctx, Record{Type: TypeExercise, Date: at(5)().Add(time.Duration(i) * time.Minute)})
				if err != nil {
					t.Fatalf("add: %v", err)
				}
				last = id
			}
			if _, err := s.Prune(ctx); err != nil {
				t.Fatalf("prune: %v", err)
			}
			left, err := s.List(ctx, "")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(left) != 2 {
				t.Fatalf("expected 2 records after prune, got %d", len(left))
			}
			if left[0].ID != last {
				t.Fatalf("expected newest record to survive")
			}
			for _, rec := range left {
				if rec.Type != TypeExercise {
					t.Fatalf("old record should have been pruned: %+v", rec)
				}
			}
		})
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	cfg := config.SessionStoreConfig{Path: filepath.Join(t.TempDir(), "sessions.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !s.Persistent() {
		t.Fatal("expected persistent store")
	}
	if _, err := s.Add(context.Background(), Record{Type: TypeTranscription}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = s.Close()

	s, err = Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	records, err := s.List(context.Background(), "")
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 record after reopen, got %d (%v)", len(records), err)
	}
}
