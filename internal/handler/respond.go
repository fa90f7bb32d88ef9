package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/pavelanni/quizreport/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, model.ErrorResponse{Success: false, Error: msg, Details: details})
}

// submissionID tags the request context with a fresh submission id.
func submissionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithSubmissionID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverJSON turns a panic into a JSON 500 response.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			slog.Error("error processing submission",
				"submission_id", model.SubmissionIDFromContext(r.Context()),
				"panic", p, "stack", string(debug.Stack()))
			writeError(w, http.StatusInternalServerError, "Internal server error", fmt.Sprint(p))
		}()
		next.ServeHTTP(w, r)
	})
}
