// Package protocol defines the JSON payloads exchanged over HTTP, the bus and event streams.
package protocol

import "time"

// Correction is one flagged grammar or style issue.
type Correction struct {
	Context      string   `json:"context"`
	Message      string   `json:"message"`
	Replacements []string `json:"replacements"`
}

// TranscriptionResult is returned for every successful audio upload.
type TranscriptionResult struct {
	Transcription          string         `json:"transcription"`
	CorrectedTranscription string         `json:"corrected_transcription"`
	Corrections            []Correction   `json:"corrections"`
	WordCount              int            `json:"word_count"`
	DurationSec            float64        `json:"duration_sec"`
	SpeechRate             float64        `json:"speech_rate"`
	TicCounts              map[string]int `json:"tic_counts"`
}

// IsZero reports whether no field was supplied. An empty object counts as missing data.
func (r *TranscriptionResult) IsZero() bool {
	return r == nil || (r.Transcription == "" &&
		r.CorrectedTranscription == "" &&
		len(r.Corrections) == 0 &&
		r.WordCount == 0 &&
		r.DurationSec == 0 &&
		r.SpeechRate == 0 &&
		len(r.TicCounts) == 0)
}

type EvaluationRequest struct {
	User              string               `json:"user"`
	Category          string               `json:"category"`
	Question          string               `json:"question"`
	Answer            string               `json:"answer"`
	TranscriptionData *TranscriptionResult `json:"transcription_data,omitempty"`
}

// EvaluationResult always carries a score in [0, 100]. Kind is set when the
// request could not be scored normally.
type EvaluationResult struct {
	Score             int                  `json:"score"`
	Message           string               `json:"message"`
	Corrections       []Correction         `json:"corrections"`
	TranscriptionData *TranscriptionResult `json:"transcription_data,omitempty"`
	Kind              string               `json:"kind,omitempty"`
}

// ErrorReply is the body returned when a transcription fails.
type ErrorReply struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// TranscriptionCompleted is published after a successful transcription.
type TranscriptionCompleted struct {
	ID        string              `json:"id"`
	Format    string              `json:"format"`
	Result    TranscriptionResult `json:"result"`
	Timestamp time.Time           `json:"timestamp"`
}

// ExerciseEvaluated is published after every evaluation, including rejected ones.
type ExerciseEvaluated struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Category  string    `json:"category"`
	Question  string    `json:"question"`
	Score     int       `json:"score"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectExerciseEvaluate = "exercise.evaluate"
	SubjectExerciseList     = "exercise.list"

	EventTranscriptionCompleted = "transcription.completed"
	EventExerciseEvaluated      = "exercise.evaluated"
)

// Result kinds reported alongside a zero score.
const (
	KindInvalidExercise          = "invalid_exercise"
	KindMissingTranscriptionData = "missing_transcription_data"
	KindCorrectorUnavailable     = "corrector_unavailable"
	KindInvalidRequest           = "invalid_request"
)
