package observer

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/openhire/openhire-agent/internal/interview"
	"github.com/openhire/openhire-agent/internal/storage"
)

var interviewIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// InterviewStore is the read surface the API serves from.
type InterviewStore interface {
	GetInterviewsByDate(date string) ([]storage.Interview, error)
	GetInterview(id string) (storage.Interview, error)
	GetMessages(interviewID string) ([]interview.Message, error)
	GetDates() ([]string, error)
}

// Controls are the live-session hooks the API drives. Nil hooks make
// the corresponding route a no-op, so the API can serve historical
// data with no interview running.
type Controls struct {
	Pause        func() bool
	Resume       func() bool
	End          func() bool
	SubmitAnswer func(text string) bool
	Snapshot     func() any
	Warnings     func() []string
}

func registerAPIRoutes(mux *http.ServeMux, store InterviewStore, controls Controls) {
	mux.HandleFunc("GET /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		interviews, err := store.GetInterviewsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list interviews: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, interviews)
	})

	mux.HandleFunc("GET /api/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		interviewID := r.PathValue("id")
		if !validInterviewID(interviewID) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}

		iv, err := store.GetInterview(interviewID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get interview: %v", err))
			return
		}

		messages, err := store.GetMessages(interviewID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get interview messages: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"interview": iv,
			"messages":  messages,
		})
	})

	mux.HandleFunc("GET /api/interviews/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		interviewID := r.PathValue("id")
		if !validInterviewID(interviewID) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}

		iv, err := store.GetInterview(interviewID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "interview not found")
			return
		}

		if iv.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(iv.AudioPath)
		if cleanPath == "" || cleanPath == "." || cleanPath == ".." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/pause", func(w http.ResponseWriter, r *http.Request) {
		requestControl(w, controls.Pause, "pause not available")
	})

	mux.HandleFunc("POST /api/resume", func(w http.ResponseWriter, r *http.Request) {
		requestControl(w, controls.Resume, "resume not available")
	})

	mux.HandleFunc("POST /api/end", func(w http.ResponseWriter, r *http.Request) {
		requestControl(w, controls.End, "end not available")
	})

	mux.HandleFunc("POST /api/answer", func(w http.ResponseWriter, r *http.Request) {
		if controls.SubmitAnswer == nil {
			writeJSONError(w, http.StatusConflict, "answer submission not available")
			return
		}
		var body struct {
			Answer string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid answer payload")
			return
		}
		if strings.TrimSpace(body.Answer) == "" {
			writeJSONError(w, http.StatusBadRequest, "answer is empty")
			return
		}
		if !controls.SubmitAnswer(body.Answer) {
			writeJSONError(w, http.StatusConflict, "no question awaiting an answer")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var snapshot any
		if controls.Snapshot != nil {
			snapshot = controls.Snapshot()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": snapshot, "warnings": warnings})
	})
}

// requestControl runs a session hook and maps a false return, which
// means the session was not in a phase that allows the request, to 409.
func requestControl(w http.ResponseWriter, hook func() bool, unavailable string) {
	if hook == nil {
		writeJSONError(w, http.StatusConflict, unavailable)
		return
	}
	if !hook() {
		writeJSONError(w, http.StatusConflict, "request not valid in current phase")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validInterviewID(id string) bool {
	return interviewIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
