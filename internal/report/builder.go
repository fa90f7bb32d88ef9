package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	appI18n "github.com/pavelanni/quizreport/internal/i18n"
	"github.com/pavelanni/quizreport/internal/model"
)

// Separator is the rule printed under every section heading. Long reports are
// split for delivery on this line.
const Separator = "━━━━━━━━━━━━━━━━━━━━\n"

const defaultSampleSize = 5

// Advisor produces personalised study recommendations.
type Advisor interface {
	Recommend(ctx context.Context, sub model.Submission, a Analysis) ([]string, error)
}

// Builder renders submissions into report text.
type Builder struct {
	cfg     model.ReportConfig
	tiers   []model.Tier
	advisor Advisor
}

// NewBuilder creates a Builder. Zero-valued config fields take their defaults.
// advisor may be nil, in which case recommendations come from the locale files.
func NewBuilder(cfg model.ReportConfig, advisor Advisor) *Builder {
	if cfg.WeakThreshold <= 0 {
		cfg.WeakThreshold = DefaultWeakThreshold
	}
	if cfg.BarWidth <= 0 {
		cfg.BarWidth = DefaultBarWidth
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	tiers := DefaultTiers
	if len(cfg.Tiers) > 0 {
		tiers = SortTiers(cfg.Tiers)
	}
	return &Builder{cfg: cfg, tiers: tiers, advisor: advisor}
}

// Analyze derives statistics using the builder's tiers and threshold.
func (b *Builder) Analyze(sub model.Submission) Analysis {
	return Analyze(sub, b.tiers, b.cfg.WeakThreshold)
}

// TierLabel returns the display label of a tier, translated when it refers to a message.
func TierLabel(ctx context.Context, t model.Tier) string {
	if t.MessageID != "" {
		return appI18n.T(ctx, t.MessageID)
	}
	return t.Label
}

// Build renders the full report for sub as of at.
func (b *Builder) Build(ctx context.Context, sub model.Submission, a Analysis, at time.Time) string {
	var sb strings.Builder

	title := b.cfg.Title
	if title == "" {
		title = appI18n.T(ctx, "ReportTitle")
	}
	fmt.Fprintf(&sb, "📊 %s\n\n", BoldMarkdown(title))

	local := at.In(b.cfg.Location)
	duration := FormatDuration(sub.TimeUsedValue())
	if sub.TestDuration != nil && *sub.TestDuration > 0 {
		duration += " / " + FormatDuration(*sub.TestDuration)
	}
	fmt.Fprintf(&sb, "*%s:* %s\n", appI18n.T(ctx, "Candidate"), EscapeMarkdown(sub.Name))
	fmt.Fprintf(&sb, "*%s:* %s\n", appI18n.T(ctx, "Date"), local.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&sb, "*%s:* %s\n", appI18n.T(ctx, "Time"), local.Format("03:04 PM"))
	fmt.Fprintf(&sb, "*%s:* %s\n\n", appI18n.T(ctx, "Duration"), duration)

	b.heading(&sb, appI18n.T(ctx, "OverallScore"))
	fmt.Fprintf(&sb, "🎯 *%d/%d (%d%%)*\n\n", a.Score, a.Total, a.Percentage)
	fmt.Fprintf(&sb, "*%s:* %s %s\n\n", appI18n.T(ctx, "Performance"), a.Tier.Emoji, TierLabel(ctx, a.Tier))

	if len(a.Sections) > 0 {
		b.heading(&sb, appI18n.T(ctx, "SectionPerformance"))
		for _, s := range a.Sections {
			p := SectionPercentage(s)
			fmt.Fprintf(&sb, "%s %s\n", sectionEmoji(p), BoldMarkdown(s.Section))
			fmt.Fprintf(&sb, "   %s %d%%\n", ProgressBar(p, b.cfg.BarWidth), p)
			fmt.Fprintf(&sb, "   %s\n\n", appI18n.Td(ctx, "SectionCorrect", map[string]any{
				"Correct": s.Correct,
				"Total":   s.Total,
			}))
		}

		if len(a.Weak) > 0 {
			b.heading(&sb, appI18n.T(ctx, "WeakAreas"))
			for _, s := range a.Weak {
				fmt.Fprintf(&sb, "• %s\n", EscapeMarkdown(s.Section))
			}
			sb.WriteString("\n")
		} else {
			threshold := int(math.Round(b.cfg.WeakThreshold * 100))
			fmt.Fprintf(&sb, "🌟 %s\n\n", appI18n.Td(ctx, "NoWeakAreas", map[string]any{"Threshold": threshold}))
		}
	}

	b.writeQuestions(ctx, &sb, sub.Answers)

	b.heading(&sb, appI18n.T(ctx, "Recommendations"))
	for _, line := range b.recommendations(ctx, sub, a) {
		fmt.Fprintf(&sb, "• %s\n", line)
	}

	fmt.Fprintf(&sb, "\n%s", appI18n.T(ctx, "Closing"))
	return sb.String()
}

func (b *Builder) heading(sb *strings.Builder, title string) {
	fmt.Fprintf(sb, "*%s*\n", title)
	sb.WriteString(Separator)
}

func (b *Builder) writeQuestions(ctx context.Context, sb *strings.Builder, answers []model.Answer) {
	if len(answers) == 0 {
		return
	}

	n := b.cfg.SampleSize
	if n == 0 {
		n = defaultSampleSize
	}
	sample := answers
	msgID := "QuestionAnalysis"
	if n > 0 && n < len(answers) {
		sample = answers[:n]
		msgID = "QuestionSample"
	}

	b.heading(sb, appI18n.T(ctx, msgID))
	for i, ans := range sample {
		mark := "❌"
		if ans.IsCorrect {
			mark = "✅"
		}
		fmt.Fprintf(sb, "%s Q%d: %s\n", mark, i+1, EscapeMarkdown(ans.Question))
		fmt.Fprintf(sb, "   %s: %s\n", appI18n.T(ctx, "YourAnswer"), EscapeMarkdown(ans.UserAnswer))
		if !ans.IsCorrect {
			fmt.Fprintf(sb, "   %s: %s\n", appI18n.T(ctx, "CorrectAnswer"), EscapeMarkdown(ans.CorrectAnswer))
		}
		sb.WriteString("\n")
	}
	if len(sample) < len(answers) {
		fmt.Fprintf(sb, "_%s_\n\n", appI18n.Tp(ctx, "QuestionsShown", len(sample)))
	}
}

func (b *Builder) recommendations(ctx context.Context, sub model.Submission, a Analysis) []string {
	if b.advisor != nil {
		lines, err := b.advisor.Recommend(ctx, sub, a)
		switch {
		case err != nil:
			slog.Warn("advisor failed, using static recommendations",
				"submission_id", model.SubmissionIDFromContext(ctx), "error", err)
		case len(lines) > 0:
			out := make([]string, len(lines))
			for i, l := range lines {
				out[i] = EscapeMarkdown(l)
			}
			return out
		}
	}
	return StaticRecommendations(ctx, a.Percentage)
}

// StaticRecommendations returns the tier-conditioned advice from the locale files.
func StaticRecommendations(ctx context.Context, p int) []string {
	var ids []string
	switch {
	case p >= 80:
		ids = []string{"RecExcellent1", "RecExcellent2"}
	case p >= 60:
		ids = []string{"RecGood1", "RecGood2"}
	default:
		ids = []string{"RecBasic1", "RecBasic2", "RecBasic3"}
	}
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = appI18n.T(ctx, id)
	}
	return lines
}
