package goalaware

import (
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

// Tier 表示命中的判定层级，数值越小优先级越高。
type Tier int

const (
	TierTitle Tier = iota + 1
	TierKeyword
	TierTarget
	TierClarification
	TierUnclear
)

func (t Tier) String() string {
	switch t {
	case TierTitle:
		return "title"
	case TierKeyword:
		return "keyword"
	case TierTarget:
		return "target"
	case TierClarification:
		return "clarification"
	case TierUnclear:
		return "unclear"
	default:
		return "unknown"
	}
}

// Verdict 给出回复是否体现了目标上下文。
type Verdict struct {
	GoalAware bool
	Tier      Tier
	// Match 为触发判定的片段：标题、关键词、目标值/单位或追问短语。
	Match string
	// Excerpt 仅在 TierUnclear 时填充，便于人工检查。
	Excerpt string
}

// ExcerptLimit 是 unclear 情况下记录的回复前缀长度（字符数）。
const ExcerptLimit = 200

// minKeywordRunes 标题中长度超过该值的词才算关键词。
const minKeywordRunes = 3

// clarificationPhrases 表示 AI 在反问用户目标是什么。
var clarificationPhrases = []string{
	"what goal",
	"which goal",
	"what are you trying",
	"what you're trying",
	"what specific goal",
	"share more details about what you're trying",
	"tell me about your goal",
	"what are you working on",
	"what would you like to achieve",
}

// ClarificationPhrases returns a copy of the phrase list checked in the clarification tier.
func ClarificationPhrases() []string {
	return append([]string(nil), clarificationPhrases...)
}

// Analyze 按层级顺序检查回复，首个命中的层级决定结果。
func Analyze(reply string, g goal.Goal) Verdict {
	normalized := strings.ToLower(reply)
	title := strings.ToLower(g.Title)

	if title != "" && strings.Contains(normalized, title) {
		return Verdict{GoalAware: true, Tier: TierTitle, Match: g.Title}
	}

	for _, keyword := range Keywords(g.Title) {
		if strings.Contains(normalized, keyword) {
			return Verdict{GoalAware: true, Tier: TierKeyword, Match: keyword}
		}
	}

	for _, candidate := range targetCandidates(g) {
		if strings.Contains(normalized, candidate) {
			return Verdict{GoalAware: true, Tier: TierTarget, Match: candidate}
		}
	}

	for _, phrase := range clarificationPhrases {
		if strings.Contains(normalized, phrase) {
			return Verdict{GoalAware: false, Tier: TierClarification, Match: phrase}
		}
	}

	return Verdict{GoalAware: false, Tier: TierUnclear, Excerpt: Truncate(reply, ExcerptLimit)}
}

// Keywords 返回标题中长度大于 3 个字符的小写词，保持标题中的顺序。
func Keywords(title string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if utf8.RuneCountInString(word) > minKeywordRunes {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// targetCandidates 目标数值的文本形式及单位；整数值同时接受 "165" 与 "165.0"。
func targetCandidates(g goal.Goal) []string {
	var out []string
	if g.TargetValue != 0 {
		value := goal.FormatValue(g.TargetValue)
		out = append(out, value)
		if !strings.Contains(value, ".") {
			out = append(out, value+".0")
		}
	}
	if unit := strings.ToLower(strings.TrimSpace(g.TargetUnit)); unit != "" {
		out = append(out, unit)
	}
	return out
}

// Truncate 按字符截断文本，不会切断多字节字符。
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
