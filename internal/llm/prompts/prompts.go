package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/quizreport/internal/model"
	"github.com/pavelanni/quizreport/internal/report"
)

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Templates embed.FS

var (
	candidateDataRegex      = regexp.MustCompile(`(?i)</?\s*candidate-data\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const (
	maxFieldRunes = 300
	maxMistakes   = 10
)

// PromptVariant represents the tone of generated advice.
type PromptVariant string

const (
	// PromptStrict focuses on gaps without praise.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default tone.
	PromptStandard PromptVariant = "standard"
	// PromptEncouraging leads with strengths.
	PromptEncouraging PromptVariant = "encouraging"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:      true,
	PromptStandard:    true,
	PromptEncouraging: true,
}

var (
	loadOnce          sync.Once
	loadErr           error
	recommendTemplate map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// SectionData is one section line in the prompt.
type SectionData struct {
	Name       string
	Correct    int
	Total      int
	Percentage int
	Weak       bool
}

// MistakeData is one wrong answer in the prompt.
type MistakeData struct {
	Section       string
	Question      string
	UserAnswer    string
	CorrectAnswer string
}

// RecommendData holds template data for recommendation prompts.
type RecommendData struct {
	Name       string
	Score      int
	Total      int
	Percentage int
	Sections   []SectionData
	Mistakes   []MistakeData
	MaxItems   int
	Language   string
}

// Load parses prompt templates from fsys. It uses sync.Once so templates are
// parsed only once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		recommendTemplate = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptEncouraging} {
			file := "templates/recommend_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("recommend").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			recommendTemplate[v] = tmpl
		}
	})
	return loadErr
}

// BuildRecommendPrompt renders the recommendation prompt for a submission.
func BuildRecommendPrompt(variant PromptVariant, sub model.Submission, a report.Analysis, maxItems int, lang string) (string, error) {
	if recommendTemplate == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := recommendTemplate[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	weak := make(map[string]bool, len(a.Weak))
	for _, s := range a.Weak {
		weak[s.Section] = true
	}
	data := RecommendData{
		Name:       sanitize(sub.Name),
		Score:      a.Score,
		Total:      a.Total,
		Percentage: a.Percentage,
		MaxItems:   maxItems,
		Language:   lang,
	}
	for _, s := range a.Sections {
		data.Sections = append(data.Sections, SectionData{
			Name:       sanitize(s.Section),
			Correct:    s.Correct,
			Total:      s.Total,
			Percentage: report.SectionPercentage(s),
			Weak:       weak[s.Section],
		})
	}
	for _, ans := range sub.Answers {
		if ans.IsCorrect {
			continue
		}
		if len(data.Mistakes) == maxMistakes {
			break
		}
		data.Mistakes = append(data.Mistakes, MistakeData{
			Section:       sanitize(ans.Section),
			Question:      sanitize(ans.Question),
			UserAnswer:    sanitize(ans.UserAnswer),
			CorrectAnswer: sanitize(ans.CorrectAnswer),
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips prompt delimiters and newlines from candidate text and caps its length.
func sanitize(s string) string {
	s = candidateDataRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return "[empty]"
	}
	if utf8.RuneCountInString(s) > maxFieldRunes {
		runes := []rune(s)
		s = string(runes[:maxFieldRunes]) + "…"
	}
	return s
}
