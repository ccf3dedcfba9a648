package goalaware

import (
	"strings"
	"testing"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

func TestAnalyzeExactTitleWins(t *testing.T) {
	g := goal.Fixture()
	verdict := Analyze("Let's work on LOSE 15 POUNDS FOR SUMMER VACATION together, what goal is next?", g)
	if !verdict.GoalAware || verdict.Tier != TierTitle {
		t.Fatalf("expected title tier pass, got %+v", verdict)
	}
}

func TestAnalyzeTitleVerbatimAlwaysPasses(t *testing.T) {
	titles := []string{
		"Lose 15 pounds for summer vacation",
		"Run 5k",
		"Sleep 8h",
		"Drink more water daily",
		"睡眠 改善",
	}
	for _, title := range titles {
		g := goal.Goal{Title: title}
		reply := "Which goal? Oh right: " + strings.ToUpper(title) + "."
		verdict := Analyze(reply, g)
		if !verdict.GoalAware {
			t.Fatalf("title %q: expected pass, got %+v", title, verdict)
		}
	}
}

func TestAnalyzeKeywordTier(t *testing.T) {
	g := goal.Fixture()
	reply := "Great, I see you're working on losing 15 pounds before summer — let's talk portion control."
	verdict := Analyze(reply, g)
	if !verdict.GoalAware || verdict.Tier != TierKeyword {
		t.Fatalf("expected keyword tier pass, got %+v", verdict)
	}
	if verdict.Match != "pounds" {
		t.Fatalf("expected first title keyword 'pounds', got %q", verdict.Match)
	}
}

func TestAnalyzeTargetTier(t *testing.T) {
	g := goal.Fixture()

	verdict := Analyze("Getting to 165 is realistic.", g)
	if !verdict.GoalAware || verdict.Tier != TierTarget || verdict.Match != "165" {
		t.Fatalf("expected target value match, got %+v", verdict)
	}

	verdict = Analyze("How many LBS per week feels right?", g)
	if !verdict.GoalAware || verdict.Tier != TierTarget || verdict.Match != "lbs" {
		t.Fatalf("expected unit match, got %+v", verdict)
	}
}

func TestAnalyzeEmptyUnitNeverMatches(t *testing.T) {
	g := goal.Goal{Title: "Be calm", TargetValue: 0, TargetUnit: ""}
	verdict := Analyze("Hello there!", g)
	if verdict.GoalAware {
		t.Fatalf("empty target fields must not match, got %+v", verdict)
	}
	if verdict.Tier != TierUnclear {
		t.Fatalf("expected unclear, got %s", verdict.Tier)
	}
}

func TestAnalyzeClarificationFails(t *testing.T) {
	g := goal.Fixture()
	verdict := Analyze("Sure! What goal are you currently working toward?", g)
	if verdict.GoalAware {
		t.Fatalf("expected failure, got %+v", verdict)
	}
	if verdict.Tier != TierClarification || verdict.Match != "what goal" {
		t.Fatalf("expected clarification phrase 'what goal', got %+v", verdict)
	}
}

func TestAnalyzeClarificationPhrasesAllDetected(t *testing.T) {
	g := goal.Goal{Title: "Hydrate", TargetValue: 3, TargetUnit: "liters"}
	for _, phrase := range ClarificationPhrases() {
		verdict := Analyze("Hi! "+strings.ToUpper(phrase)+"?", g)
		if verdict.GoalAware || verdict.Tier != TierClarification || verdict.Match != phrase {
			t.Fatalf("phrase %q: unexpected verdict %+v", phrase, verdict)
		}
	}
}

func TestAnalyzeUnclearKeepsExcerpt(t *testing.T) {
	g := goal.Fixture()
	reply := strings.Repeat("ok ", 150)
	verdict := Analyze(reply, g)
	if verdict.GoalAware || verdict.Tier != TierUnclear {
		t.Fatalf("expected unclear, got %+v", verdict)
	}
	if len([]rune(verdict.Excerpt)) != ExcerptLimit {
		t.Fatalf("expected excerpt of %d chars, got %d", ExcerptLimit, len([]rune(verdict.Excerpt)))
	}
}

func TestKeywordsSkipShortWords(t *testing.T) {
	got := Keywords("Lose 15 pounds for summer vacation")
	want := []string{"lose", "pounds", "summer", "vacation"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTruncateRespectsRunes(t *testing.T) {
	if got := Truncate("目标很明确", 2); got != "目标" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
