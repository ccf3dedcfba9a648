package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
	"github.com/zhouzirui/goalprobe/internal/model/persona"
)

// BuildSystemPrompt 拼出角色设定，并在有目标上下文时附上目标详情。
func BuildSystemPrompt(p *persona.Persona, g *goal.Goal) string {
	var b strings.Builder

	if p != nil {
		fmt.Fprintf(&b, "You are %s, a %s. Tone: %s.\n", p.Name, p.Title, p.Tone)
		if p.PromptHint != "" {
			fmt.Fprintf(&b, "Guidance: %s\n", p.PromptHint)
		}
		if len(p.Expertise) > 0 {
			fmt.Fprintf(&b, "Expertise: %s\n", strings.Join(p.Expertise, ", "))
		}
	} else {
		b.WriteString("You are a supportive wellness coach.\n")
	}

	if g == nil {
		b.WriteString("\nThe user has not shared a specific goal yet.")
		return b.String()
	}

	b.WriteString("\nThe user opened this consultation about the following goal. ")
	b.WriteString("Refer to it by name without asking what their goal is.\n")
	fmt.Fprintf(&b, "- Title: %s\n", g.Title)
	fmt.Fprintf(&b, "- Type: %s\n", g.GoalType)
	if g.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", g.Description)
	}
	fmt.Fprintf(&b, "- Current: %s %s\n", goal.FormatValue(g.CurrentValue), g.TargetUnit)
	fmt.Fprintf(&b, "- Target: %s %s\n", goal.FormatValue(g.TargetValue), g.TargetUnit)
	if g.StartDate != "" || g.TargetDate != "" {
		fmt.Fprintf(&b, "- Timeline: %s to %s\n", g.StartDate, g.TargetDate)
	}
	return strings.TrimRight(b.String(), "\n")
}
