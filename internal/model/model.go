package model

import (
	"context"
	"time"
)

// Answer is a single graded question as reported by the quiz frontend.
type Answer struct {
	Section       string `json:"section"`
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// Submission is the request body of a completed quiz.
// Numeric fields are pointers so that an absent field can be told apart from zero.
type Submission struct {
	Name         string   `json:"name" validate:"required,notblank"`
	Score        *int     `json:"score" validate:"required,min=0"`
	Total        *int     `json:"total" validate:"required,gt=0"`
	TimeUsed     *int     `json:"timeUsed" validate:"required,min=0"`
	Answers      []Answer `json:"answers" validate:"required"`
	TestDuration *int     `json:"testDuration,omitempty" validate:"omitempty,min=0"`
}

// ScoreValue returns the score, or 0 when absent.
func (s Submission) ScoreValue() int {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// TotalValue returns the total, or 0 when absent.
func (s Submission) TotalValue() int {
	if s.Total == nil {
		return 0
	}
	return *s.Total
}

// TimeUsedValue returns the elapsed seconds, or 0 when absent.
func (s Submission) TimeUsedValue() int {
	if s.TimeUsed == nil {
		return 0
	}
	return *s.TimeUsed
}

// SectionStat counts answers for one section.
type SectionStat struct {
	Section string
	Correct int
	Total   int
}

// Tier is a labelled performance band. A percentage belongs to the first tier
// (ordered highest Min first) whose Min it reaches.
type Tier struct {
	Min       int    `mapstructure:"min" json:"min"`
	Emoji     string `mapstructure:"emoji" json:"emoji"`
	Label     string `mapstructure:"label" json:"label"`
	MessageID string `mapstructure:"message_id" json:"message_id,omitempty"`
}

// SubmitData echoes the accepted submission back to the caller.
type SubmitData struct {
	SubmissionID  string `json:"submissionId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Total         int    `json:"total"`
	Percentage    int    `json:"percentage"`
	TimeUsed      int    `json:"timeUsed"`
	TimeFormatted string `json:"timeFormatted"`
	TelegramSent  *bool  `json:"telegramSent,omitempty"`
}

// SubmitResponse is the success envelope.
type SubmitResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    SubmitData `json:"data"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ReportConfig holds report rendering parameters set via CLI flags or config file.
type ReportConfig struct {
	Title         string  // empty means the localised default
	SampleSize    int     // 0 means the default, negative means every answer
	WeakThreshold float64 // sections below this ratio are flagged
	BarWidth      int
	Tiers         []Tier // empty means the built-in bands
	Location      *time.Location
}

// ServerConfig holds runtime HTTP parameters set via CLI flags.
type ServerConfig struct {
	CORSEnabled bool
	CORSOrigins []string
	MaxBodySize int64
}

type submissionIDCtxKey struct{}

// ContextWithSubmissionID stores the submission id in context.
func ContextWithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, submissionIDCtxKey{}, id)
}

// SubmissionIDFromContext retrieves the submission id (empty string if not set).
func SubmissionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(submissionIDCtxKey{}).(string)
	return id
}
