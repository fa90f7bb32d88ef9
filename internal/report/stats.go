// Package report derives quiz statistics and renders them as a Telegram
// Markdown report.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pavelanni/quizreport/internal/model"
)

const (
	// DefaultWeakThreshold flags sections answered less than 70% correctly.
	DefaultWeakThreshold = 0.70
	// DefaultBarWidth is the number of cells in a progress bar.
	DefaultBarWidth = 10

	barFilled = "█"
	barEmpty  = "░"
)

// DefaultTiers are the built-in performance bands, highest first.
var DefaultTiers = []model.Tier{
	{Min: 90, Emoji: "🏆", MessageID: "TierExcellent"},
	{Min: 80, Emoji: "🎯", MessageID: "TierVeryGood"},
	{Min: 70, Emoji: "👍", MessageID: "TierGood"},
	{Min: 60, Emoji: "📚", MessageID: "TierSatisfactory"},
	{Min: 50, Emoji: "⚠️", MessageID: "TierNeedsImprovement"},
	{Min: 0, Emoji: "📖", MessageID: "TierUnsatisfactory"},
}

// Percentage returns score/total as a whole percentage, rounded half up.
// A non-positive total yields 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// FormatDuration renders seconds as "<m>m <s>s".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// FoldSections groups answers by section in first-seen order.
func FoldSections(answers []model.Answer) []model.SectionStat {
	var stats []model.SectionStat
	index := make(map[string]int)
	for _, a := range answers {
		i, ok := index[a.Section]
		if !ok {
			i = len(stats)
			index[a.Section] = i
			stats = append(stats, model.SectionStat{Section: a.Section})
		}
		stats[i].Total++
		if a.IsCorrect {
			stats[i].Correct++
		}
	}
	return stats
}

// SectionPercentage is the rounded share of correct answers in a section.
func SectionPercentage(s model.SectionStat) int {
	return Percentage(s.Correct, s.Total)
}

// WeakSections returns the sections whose correct ratio is below threshold,
// keeping their original order.
func WeakSections(stats []model.SectionStat, threshold float64) []model.SectionStat {
	var weak []model.SectionStat
	for _, s := range stats {
		if s.Total == 0 {
			continue
		}
		if float64(s.Correct)/float64(s.Total) < threshold {
			weak = append(weak, s)
		}
	}
	return weak
}

// ProgressBar renders p percent as width cells.
func ProgressBar(p, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(float64(p) / 100 * float64(width)))
	filled = max(0, min(filled, width))
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// SortTiers orders tiers highest Min first. The input is not modified.
func SortTiers(tiers []model.Tier) []model.Tier {
	sorted := make([]model.Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })
	return sorted
}

// ResolveTier returns the first tier whose Min is reached by p. tiers must be
// ordered highest first. When p is below every tier the lowest tier is used.
func ResolveTier(p int, tiers []model.Tier) model.Tier {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	for _, t := range tiers {
		if p >= t.Min {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// sectionEmoji marks a section as passed, borderline or failed.
func sectionEmoji(p int) string {
	switch {
	case p >= 80:
		return "✅"
	case p >= 60:
		return "⚠️"
	default:
		return "❌"
	}
}

// Analysis is everything derived from a submission before rendering.
type Analysis struct {
	Score      int
	Total      int
	Percentage int
	Tier       model.Tier
	Sections   []model.SectionStat
	Weak       []model.SectionStat
}

// Analyze derives an Analysis from a validated submission.
func Analyze(sub model.Submission, tiers []model.Tier, weakThreshold float64) Analysis {
	score, total := sub.ScoreValue(), sub.TotalValue()
	p := Percentage(score, total)
	sections := FoldSections(sub.Answers)
	return Analysis{
		Score:      score,
		Total:      total,
		Percentage: p,
		Tier:       ResolveTier(p, tiers),
		Sections:   sections,
		Weak:       WeakSections(sections, weakThreshold),
	}
}
