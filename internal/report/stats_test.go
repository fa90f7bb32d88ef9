package report

import (
	"testing"

	"github.com/pavelanni/quizreport/internal/model"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total int
		want         int
	}{
		{7, 10, 70},
		{0, 10, 0},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds up
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestPercentageInRange(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for score := 0; score <= total; score++ {
			p := Percentage(score, total)
			if p < 0 || p > 100 {
				t.Fatalf("Percentage(%d, %d) = %d out of range", score, total, p)
			}
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{125, "2m 5s"},
		{0, "0m 0s"},
		{59, "0m 59s"},
		{3600, "60m 0s"},
		{-4, "0m 0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFoldSections(t *testing.T) {
	answers := []model.Answer{
		{Section: "Tenses", IsCorrect: true},
		{Section: "Articles", IsCorrect: false},
		{Section: "Tenses", IsCorrect: false},
		{Section: "Prepositions", IsCorrect: true},
		{Section: "Articles", IsCorrect: true},
		{Section: "Tenses", IsCorrect: true},
	}

	got := FoldSections(answers)
	want := []model.SectionStat{
		{Section: "Tenses", Correct: 2, Total: 3},
		{Section: "Articles", Correct: 1, Total: 2},
		{Section: "Prepositions", Correct: 1, Total: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d sections, want %d", len(got), len(want))
	}
	sum := 0
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("section %d = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].Correct > got[i].Total {
			t.Errorf("section %q has more correct than total", got[i].Section)
		}
		sum += got[i].Total
	}
	if sum != len(answers) {
		t.Errorf("section totals sum to %d, want %d", sum, len(answers))
	}
}

func TestFoldSectionsEmpty(t *testing.T) {
	if got := FoldSections(nil); len(got) != 0 {
		t.Errorf("FoldSections(nil) = %v, want empty", got)
	}
	if got := WeakSections(FoldSections([]model.Answer{}), DefaultWeakThreshold); len(got) != 0 {
		t.Errorf("WeakSections(empty) = %v, want empty", got)
	}
}

func TestWeakSections(t *testing.T) {
	stats := []model.SectionStat{
		{Section: "A", Correct: 7, Total: 10}, // exactly at threshold
		{Section: "B", Correct: 6, Total: 10},
		{Section: "C", Correct: 0, Total: 2},
		{Section: "D", Correct: 5, Total: 5},
	}
	weak := WeakSections(stats, DefaultWeakThreshold)
	if len(weak) != 2 || weak[0].Section != "B" || weak[1].Section != "C" {
		t.Errorf("WeakSections = %+v, want [B C]", weak)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		p, width int
		want     string
	}{
		{60, 10, "██████░░░░"},
		{0, 10, "░░░░░░░░░░"},
		{100, 10, "██████████"},
		{45, 10, "█████░░░░░"},
		{44, 10, "████░░░░░░"},
		{50, 4, "██░░"},
		{150, 10, "██████████"},
		{30, 0, ""},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.p, tt.width); got != tt.want {
			t.Errorf("ProgressBar(%d, %d) = %q, want %q", tt.p, tt.width, got, tt.want)
		}
	}
}

func TestResolveTier(t *testing.T) {
	tests := []struct {
		p    int
		want string
	}{
		{100, "TierExcellent"},
		{90, "TierExcellent"},
		{89, "TierVeryGood"},
		{80, "TierVeryGood"},
		{70, "TierGood"},
		{60, "TierSatisfactory"},
		{50, "TierNeedsImprovement"},
		{49, "TierUnsatisfactory"},
		{0, "TierUnsatisfactory"},
	}
	for _, tt := range tests {
		if got := ResolveTier(tt.p, DefaultTiers); got.MessageID != tt.want {
			t.Errorf("ResolveTier(%d) = %q, want %q", tt.p, got.MessageID, tt.want)
		}
	}
}

func TestResolveTierCustomBands(t *testing.T) {
	tiers := SortTiers([]model.Tier{
		{Min: 40, Label: "pass"},
		{Min: 85, Label: "distinction"},
	})
	if tiers[0].Label != "distinction" {
		t.Fatalf("SortTiers did not order highest first: %+v", tiers)
	}

	tests := []struct {
		p    int
		want string
	}{
		{95, "distinction"},
		{85, "distinction"},
		{60, "pass"},
		{10, "pass"}, // below every band falls to the lowest
	}
	for _, tt := range tests {
		if got := ResolveTier(tt.p, tiers); got.Label != tt.want {
			t.Errorf("ResolveTier(%d) = %q, want %q", tt.p, got.Label, tt.want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	score, total, used := 7, 10, 125
	sub := model.Submission{
		Name:     "Ann",
		Score:    &score,
		Total:    &total,
		TimeUsed: &used,
		Answers: []model.Answer{
			{Section: "Tenses", IsCorrect: true},
			{Section: "Tenses", IsCorrect: false},
			{Section: "Articles", IsCorrect: true},
		},
	}
	a := Analyze(sub, DefaultTiers, DefaultWeakThreshold)
	if a.Percentage != 70 {
		t.Errorf("Percentage = %d, want 70", a.Percentage)
	}
	if a.Tier.MessageID != "TierGood" {
		t.Errorf("Tier = %q, want TierGood", a.Tier.MessageID)
	}
	if len(a.Sections) != 2 {
		t.Errorf("got %d sections, want 2", len(a.Sections))
	}
	if len(a.Weak) != 1 || a.Weak[0].Section != "Tenses" {
		t.Errorf("Weak = %+v, want [Tenses]", a.Weak)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := EscapeMarkdown("snake_case *bold* [link] `code`")
	want := "snake\\_case \\*bold\\* \\[link] \\`code\\`"
	if got != want {
		t.Errorf("EscapeMarkdown = %q, want %q", got, want)
	}
}

func TestBoldMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Grammar", "*Grammar*"},
		{"", ""},
		{"2*2", "*2*\\**2*"},
		{"_lead", "\\_*lead*"},
		{"trail_", "*trail*\\_"},
		{"a[b]`c`", "*a*\\[*b]*\\`*c*\\`"},
	}
	for _, tt := range tests {
		if got := BoldMarkdown(tt.in); got != tt.want {
			t.Errorf("BoldMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
