// Package telegram delivers reports through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pavelanni/quizreport/internal/model"
	"github.com/pavelanni/quizreport/internal/report"
)

const (
	// DefaultAPIURL is the public Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"
	// DefaultChunkLimit stays below Telegram's 4096 unit message cap.
	DefaultChunkLimit = 4000
	// DefaultSendInterval is the pause between consecutive messages.
	DefaultSendInterval = time.Second
	// DefaultTimeout bounds a single sendMessage call.
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 1 << 20
)

var (
	// ErrMissingCredentials is returned by New when the bot token or chat id is blank.
	ErrMissingCredentials = errors.New("telegram bot token and chat id are required")
	// ErrEmptyMessage is reported when there is nothing to send.
	ErrEmptyMessage = errors.New("empty message")
)

// Config holds the Bot API credentials and delivery parameters.
type Config struct {
	Token        string
	ChatID       string
	APIURL       string
	ChunkLimit   int
	SendInterval time.Duration
	Timeout      time.Duration
	Separator    string
	HTTPClient   *http.Client
}

// APIError is a non-success reply from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error (HTTP %d): %s", e.StatusCode, e.Description)
}

// Result is the aggregate outcome of delivering one report.
type Result struct {
	Chunks int
	Sent   int
	Err    error
}

// OK reports whether every chunk was delivered.
func (r Result) OK() bool {
	return r.Err == nil && r.Chunks > 0 && r.Sent == r.Chunks
}

// Notifier sends messages to a single chat.
type Notifier struct {
	cfg      Config
	client   *http.Client
	baseURL  string
	redacted string
}

// New creates a Notifier. Zero-valued delivery parameters take their defaults.
func New(cfg Config) (*Notifier, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.ChatID = strings.TrimSpace(cfg.ChatID)
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = DefaultChunkLimit
	}
	if cfg.SendInterval < 0 {
		cfg.SendInterval = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Separator == "" {
		cfg.Separator = report.Separator
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	api := strings.TrimRight(cfg.APIURL, "/")
	if _, err := url.Parse(api); err != nil {
		return nil, fmt.Errorf("parse API URL: %w", err)
	}
	return &Notifier{
		cfg:      cfg,
		client:   client,
		baseURL:  api + "/bot" + cfg.Token,
		redacted: api + "/bot<redacted>",
	}, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify splits text into chunks and sends them in order, pausing between
// sends. Delivery stops at the first failed chunk.
func (n *Notifier) Notify(ctx context.Context, text string) Result {
	chunks := Split(text, n.cfg.ChunkLimit, n.cfg.Separator)
	res := Result{Chunks: len(chunks)}
	if len(chunks) == 0 {
		res.Err = ErrEmptyMessage
		return res
	}

	every := rate.Inf
	if n.cfg.SendInterval > 0 {
		every = rate.Every(n.cfg.SendInterval)
	}
	limiter := rate.NewLimiter(every, 1)
	submissionID := model.SubmissionIDFromContext(ctx)

	for i, chunk := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("wait before chunk %d/%d: %w", i+1, len(chunks), err)
			return res
		}
		if err := n.sendMessage(ctx, chunk); err != nil {
			res.Err = fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			slog.Warn("telegram delivery failed",
				"submission_id", submissionID, "chunk", i+1, "chunks", len(chunks), "error", err)
			return res
		}
		res.Sent++
		slog.Debug("telegram chunk sent",
			"submission_id", submissionID, "chunk", i+1, "chunks", len(chunks), "length", TextLen(chunk))
	}
	return res
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                n.cfg.ChatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return n.call(ctx, "sendMessage", body)
}

// Ping checks the bot token with getMe.
func (n *Notifier) Ping(ctx context.Context) error {
	return n.call(ctx, "getMe", nil)
}

func (n *Notifier) call(ctx context.Context, method string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	httpMethod := http.MethodGet
	var reader io.Reader
	if body != nil {
		httpMethod = http.MethodPost
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, n.baseURL+"/"+method, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", n.redact(err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, n.redact(err))
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Description: "decode response: " + err.Error()}
	}
	if !out.OK {
		desc := out.Description
		if desc == "" {
			desc = "Telegram API error"
		}
		return &APIError{StatusCode: resp.StatusCode, Description: desc}
	}
	return nil
}

// redact keeps the bot token out of transport errors, which embed the URL.
func (n *Notifier) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.Replace(uerr.URL, n.baseURL, n.redacted, 1)
	}
	return err
}
