package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	appI18n "github.com/pavelanni/quizreport/internal/i18n"
	"github.com/pavelanni/quizreport/internal/model"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func enCtx() context.Context {
	return appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer("en"))
}

var testTime = time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC)

func newSubmission(score, total, used int, answers []model.Answer) model.Submission {
	return model.Submission{
		Name:     "Jane_Doe",
		Score:    &score,
		Total:    &total,
		TimeUsed: &used,
		Answers:  answers,
	}
}

func sampleAnswers() []model.Answer {
	return []model.Answer{
		{Section: "Tenses", Question: "She ___ home.", UserAnswer: "go", CorrectAnswer: "goes", IsCorrect: false},
		{Section: "Tenses", Question: "They ___ here.", UserAnswer: "are", CorrectAnswer: "are", IsCorrect: true},
		{Section: "Tenses", Question: "I ___ tired.", UserAnswer: "am", CorrectAnswer: "am", IsCorrect: true},
		{Section: "Articles", Question: "___ apple", UserAnswer: "an", CorrectAnswer: "an", IsCorrect: true},
		{Section: "Articles", Question: "___ sun", UserAnswer: "a", CorrectAnswer: "the", IsCorrect: false},
		{Section: "Articles", Question: "___ hour", UserAnswer: "an", CorrectAnswer: "an", IsCorrect: true},
		{Section: "Articles", Question: "___ cat", UserAnswer: "a", CorrectAnswer: "a", IsCorrect: true},
	}
}

func newTestBuilder(cfg model.ReportConfig, advisor Advisor) *Builder {
	cfg.Location = time.UTC
	return NewBuilder(cfg, advisor)
}

func TestBuildFullReport(t *testing.T) {
	b := newTestBuilder(model.ReportConfig{}, nil)
	sub := newSubmission(5, 7, 125, sampleAnswers())
	a := b.Analyze(sub)
	got := b.Build(enCtx(), sub, a, testTime)

	wants := []string{
		"📊 *TEST RESULT*\n\n",
		"*Candidate:* Jane\\_Doe\n",
		"*Date:* Saturday, March 14, 2026\n",
		"*Time:* 03:04 PM\n",
		"*Duration:* 2m 5s\n\n",
		"*OVERALL SCORE*\n" + Separator + "🎯 *5/7 (71%)*\n\n",
		"*Performance:* 👍 GOOD\n\n",
		"⚠️ *Tenses*\n   ███████░░░ 67%\n   2/3 correct\n\n",
		"⚠️ *Articles*\n   ████████░░ 75%\n   3/4 correct\n\n",
		"*AREAS NEEDING IMPROVEMENT*\n" + Separator + "• Tenses\n\n",
		"*SAMPLE QUESTIONS ANALYSIS*\n",
		"❌ Q1: She \\_\\_\\_ home.\n   Your answer: go\n   Correct: goes\n\n",
		"✅ Q2: They \\_\\_\\_ here.\n   Your answer: are\n\n",
		"_Showing 5 questions._",
		"*RECOMMENDATIONS*\n" + Separator + "• Good effort. Focus on weak areas.\n• Review incorrect answers.\n",
	}
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("report missing %q\n---\n%s", w, got)
		}
	}
	if strings.Contains(got, "Q6:") {
		t.Error("report should show only the first 5 questions")
	}
	if !strings.HasSuffix(got, "\nTest completed successfully! 🎉") {
		t.Error("report should end with the closing line")
	}
}

func TestBuildAllClearAndFullList(t *testing.T) {
	answers := []model.Answer{
		{Section: "Tenses", Question: "q1", UserAnswer: "a", CorrectAnswer: "a", IsCorrect: true},
		{Section: "Tenses", Question: "q2", UserAnswer: "b", CorrectAnswer: "b", IsCorrect: true},
	}
	b := newTestBuilder(model.ReportConfig{SampleSize: -1}, nil)
	sub := newSubmission(2, 2, 30, answers)
	got := b.Build(enCtx(), sub, b.Analyze(sub), testTime)

	if strings.Contains(got, "AREAS NEEDING IMPROVEMENT") {
		t.Error("no section is weak, weak list should be absent")
	}
	if !strings.Contains(got, "🌟 No weak areas. Every section is at 70% or above.") {
		t.Errorf("missing all-clear message:\n%s", got)
	}
	if !strings.Contains(got, "*QUESTION ANALYSIS*") {
		t.Error("full list should use the non-sample heading")
	}
	if !strings.Contains(got, "🏆 EXCELLENT") {
		t.Error("100% should resolve to the top tier")
	}
	if !strings.Contains(got, "• Excellent performance! Maintain regular practice.") {
		t.Error("missing top recommendations")
	}
}

func TestBuildNoAnswers(t *testing.T) {
	b := newTestBuilder(model.ReportConfig{}, nil)
	sub := newSubmission(0, 10, 5, []model.Answer{})
	got := b.Build(enCtx(), sub, b.Analyze(sub), testTime)

	if strings.Contains(got, "SECTION-WISE PERFORMANCE") || strings.Contains(got, "QUESTION") {
		t.Errorf("empty answers should produce no section or question blocks:\n%s", got)
	}
	if !strings.Contains(got, "📖 UNSATISFACTORY") {
		t.Error("0% should resolve to the lowest tier")
	}
	if !strings.Contains(got, "• Take the test again after studying.") {
		t.Error("missing basic recommendations")
	}
}

func TestBuildCustomTitleTiersAndDuration(t *testing.T) {
	cfg := model.ReportConfig{
		Title: "GRAMMAR CHECK",
		Tiers: []model.Tier{{Min: 0, Emoji: "🙂", Label: "Done"}},
	}
	b := newTestBuilder(cfg, nil)
	sub := newSubmission(3, 10, 61, nil)
	limit := 1800
	sub.TestDuration = &limit
	got := b.Build(enCtx(), sub, b.Analyze(sub), testTime)

	for _, w := range []string{"📊 *GRAMMAR CHECK*", "*Performance:* 🙂 Done", "*Duration:* 1m 1s / 30m 0s"} {
		if !strings.Contains(got, w) {
			t.Errorf("report missing %q\n%s", w, got)
		}
	}
}

func TestBuildRussian(t *testing.T) {
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer("ru"))
	b := newTestBuilder(model.ReportConfig{}, nil)
	sub := newSubmission(9, 10, 60, nil)
	got := b.Build(ctx, sub, b.Analyze(sub), testTime)

	if !strings.Contains(got, "*Кандидат:*") || !strings.Contains(got, "ОТЛИЧНО") {
		t.Errorf("report not localised:\n%s", got)
	}
}

type fakeAdvisor struct {
	lines []string
	err   error
	calls int
}

func (f *fakeAdvisor) Recommend(_ context.Context, _ model.Submission, _ Analysis) ([]string, error) {
	f.calls++
	return f.lines, f.err
}

func TestBuildUsesAdvisor(t *testing.T) {
	adv := &fakeAdvisor{lines: []string{"Drill *present simple*.", "Read one article a day."}}
	b := newTestBuilder(model.ReportConfig{}, adv)
	sub := newSubmission(4, 10, 60, sampleAnswers())
	got := b.Build(enCtx(), sub, b.Analyze(sub), testTime)

	if adv.calls != 1 {
		t.Errorf("advisor called %d times, want 1", adv.calls)
	}
	if !strings.Contains(got, "• Drill \\*present simple\\*.\n• Read one article a day.\n") {
		t.Errorf("advisor lines missing or unescaped:\n%s", got)
	}
	if strings.Contains(got, "Review basic grammar rules.") {
		t.Error("static recommendations should be replaced")
	}
}

func TestBuildFallsBackWhenAdvisorFails(t *testing.T) {
	for name, adv := range map[string]*fakeAdvisor{
		"error": {err: errors.New("boom")},
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			b := newTestBuilder(model.ReportConfig{}, adv)
			sub := newSubmission(4, 10, 60, nil)
			got := b.Build(enCtx(), sub, b.Analyze(sub), testTime)
			if !strings.Contains(got, "• Review basic grammar rules.") {
				t.Errorf("expected static fallback:\n%s", got)
			}
		})
	}
}

// unescapedStars counts '*' not preceded by a backslash.
func unescapedStars(line string) int {
	n := 0
	for i := 0; i < len(line); i++ {
		if line[i] == '*' && (i == 0 || line[i-1] != '\\') {
			n++
		}
	}
	return n
}

func TestBuildSectionNamesWithDelimiters(t *testing.T) {
	b := newTestBuilder(model.ReportConfig{Title: "B1_LEVEL"}, nil)
	sub := newSubmission(1, 2, 60, []model.Answer{
		{Section: "Present_Perfect", Question: "Q", UserAnswer: "a", CorrectAnswer: "a", IsCorrect: true},
		{Section: "2*2", Question: "Q", UserAnswer: "3", CorrectAnswer: "4", IsCorrect: false},
	})
	got := b.Build(enCtx(), sub, b.Analyze(sub), testTime)

	for _, w := range []string{
		"📊 *B1*\\_*LEVEL*\n",
		"✅ *Present*\\_*Perfect*\n",
		"❌ *2*\\**2*\n",
	} {
		if !strings.Contains(got, w) {
			t.Errorf("report missing %q:\n%s", w, got)
		}
	}
	for _, line := range strings.Split(got, "\n") {
		if n := unescapedStars(line); n%2 != 0 {
			t.Errorf("unbalanced bold markers (%d) in line %q", n, line)
		}
	}
}
