package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/loqalabs/ortheloquence/internal/pipeline"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	"github.com/loqalabs/ortheloquence/internal/sessions"
)

const (
	kindUploadTooLarge = "upload_too_large"
	maxJSONBody        = 1 << 20
)

// handleTranscribe streams the multipart "file" field straight into the
// pipeline. Pipeline failures are reported with status 200 and an error body.
func (a *api) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if a.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorReply{Error: "expected a multipart upload", Kind: protocol.KindInvalidRequest})
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, protocol.ErrorReply{Error: "missing file field", Kind: pipeline.KindInputMissing})
			return
		}
		if err != nil {
			a.writeUploadError(w, err)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		result, err := a.pipeline.Transcribe(r.Context(), part, uploadFormat(part.FileName(), part.Header.Get("Content-Type")))
		_ = part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				a.writeUploadError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, protocol.ErrorReply{Error: pipeline.Message(err), Kind: pipeline.KindOf(err)})
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
}

func (a *api) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, protocol.ErrorReply{Error: "upload exceeds size limit", Kind: kindUploadTooLarge})
		return
	}
	a.log.Warn("failed to read upload", slogError(err))
	writeJSON(w, http.StatusBadRequest, protocol.ErrorReply{Error: "malformed multipart upload", Kind: protocol.KindInvalidRequest})
}

// uploadFormat picks the container from the file name, then the part's content type.
func uploadFormat(filename, contentType string) string {
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "octet-stream" {
			return sub
		}
	}
	return "webm"
}

func (a *api) handleListExercises(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.pipeline.Catalog().List())
}

func (a *api) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req protocol.EvaluationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.EvaluationResult{
			Message:     "invalid request",
			Corrections: []protocol.Correction{},
			Kind:        protocol.KindInvalidRequest,
		})
		return
	}
	if req.User == "" {
		req.User = sessions.DefaultUser
	}
	writeJSON(w, http.StatusOK, a.pipeline.Evaluate(r.Context(), req))
}

func (a *api) handleListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := a.sessions.List(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		a.log.Error("failed to list sessions", slogError(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *api) handleAddSession(w http.ResponseWriter, r *http.Request) {
	var rec sessions.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session body"})
		return
	}
	id, err := a.sessions.Add(r.Context(), rec)
	if errors.Is(err, sessions.ErrInvalidRecord) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		a.log.Error("failed to save session", slogError(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"inserted_id": id})
}

func (a *api) handleDeleteSessions(w http.ResponseWriter, r *http.Request) {
	n, err := a.sessions.DeleteAll(r.Context())
	if err != nil {
		a.log.Error("failed to delete sessions", slogError(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete sessions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted_count": n})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
