package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pavelanni/quizreport/internal/model"
	"github.com/pavelanni/quizreport/internal/report"
	"github.com/pavelanni/quizreport/internal/telegram"
)

const defaultMaxBodySize = 1 << 20

// Notifier delivers a rendered report.
type Notifier interface {
	Notify(ctx context.Context, text string) telegram.Result
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	builder  *report.Builder
	notifier Notifier
	decoder  *Decoder
	config   model.ServerConfig
	now      func() time.Time
}

// New creates a new Handler. notifier may be nil, in which case submissions
// are accepted but no report is sent.
func New(b *report.Builder, n Notifier, cfg model.ServerConfig) (*Handler, error) {
	if b == nil {
		return nil, fmt.Errorf("report builder is required")
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	d, err := NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	return &Handler{builder: b, notifier: n, decoder: d, config: cfg, now: time.Now}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(submissionID)
		r.Use(recoverJSON)
		if h.config.CORSEnabled {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:     h.config.CORSOrigins,
				AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
				AllowedHeaders:     []string{"Content-Type"},
				AllowCredentials:   !slices.Contains(h.config.CORSOrigins, "*"),
				MaxAge:             300,
				OptionsPassthrough: true,
			}))
		}
		r.HandleFunc("/api/submit-test", h.handleSubmit)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"telegram": h.notifier != nil,
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodOptions:
		if h.config.CORSEnabled {
			w.WriteHeader(http.StatusOK)
			return
		}
		fallthrough
	default:
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	ctx := r.Context()
	id := model.SubmissionIDFromContext(ctx)
	log := slog.With("submission_id", id)

	sub, err := h.decoder.Decode(http.MaxBytesReader(w, r.Body, h.config.MaxBodySize))
	if err != nil {
		var in *InputError
		if !errors.As(err, &in) {
			log.Error("error decoding submission", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
			return
		}
		log.Info("submission rejected", "status", in.Status, "error", in.Message, "details", in.Details)
		writeError(w, in.Status, in.Message, in.Details)
		return
	}

	a := h.builder.Analyze(sub)
	data := model.SubmitData{
		SubmissionID:  id,
		Name:          sub.Name,
		Score:         a.Score,
		Total:         a.Total,
		Percentage:    a.Percentage,
		TimeUsed:      sub.TimeUsedValue(),
		TimeFormatted: report.FormatDuration(sub.TimeUsedValue()),
	}
	log = log.With("name", sub.Name, "score", fmt.Sprintf("%d/%d", a.Score, a.Total),
		"percentage", a.Percentage, "time_used", data.TimeFormatted)

	if h.notifier == nil {
		log.Error("telegram credentials not configured, report not sent")
		writeJSON(w, http.StatusOK, model.SubmitResponse{
			Success: true,
			Message: "Test submitted successfully (Telegram not configured)",
			Data:    data,
		})
		return
	}

	text := h.builder.Build(ctx, sub, a, h.now())
	res := h.notify(context.WithoutCancel(ctx), text)
	sent := res.OK()
	data.TelegramSent = &sent

	if !sent {
		log.Error("telegram notification failed", "chunks", res.Chunks, "sent", res.Sent, "error", res.Err)
		writeJSON(w, http.StatusOK, model.SubmitResponse{
			Success: true,
			Message: "Test submitted (Telegram notification failed)",
			Data:    data,
		})
		return
	}

	log.Info("test submitted", "chunks", res.Chunks, "telegram_sent", true)
	writeJSON(w, http.StatusOK, model.SubmitResponse{
		Success: true,
		Message: "Test submitted successfully",
		Data:    data,
	})
}

// notify shields the caller from a misbehaving notifier: a panic counts as a
// failed delivery.
func (h *Handler) notify(ctx context.Context, text string) (res telegram.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = telegram.Result{Err: fmt.Errorf("notifier panic: %v", p)}
		}
	}()
	return h.notifier.Notify(ctx, text)
}
