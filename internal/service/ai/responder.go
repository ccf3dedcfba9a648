package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/goal"
	"github.com/zhouzirui/goalprobe/internal/model/persona"
)

// Request 是一次 AI 回复所需的上下文。
type Request struct {
	ConsultationID string
	Persona        *persona.Persona
	Goal           *goal.Goal
	History        []consultation.Message
	UserText       string
}

// Responder 以增量方式产出回复；emit 返回错误时应停止生成。
type Responder interface {
	Stream(ctx context.Context, req Request, emit func(chunk string) error) (string, error)
}

// ScriptedResponder 根据目标上下文拼出固定模板的回复，无需大模型。
type ScriptedResponder struct {
	// Oblivious 模拟丢失上下文的后端：始终反问用户目标是什么。
	Oblivious  bool
	ChunkWords int
	ChunkDelay time.Duration
}

// Stream 按词分块发送回复。
func (r *ScriptedResponder) Stream(ctx context.Context, req Request, emit func(chunk string) error) (string, error) {
	text := r.compose(req)

	for _, chunk := range splitChunks(text, r.chunkWords()) {
		if r.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.ChunkDelay):
			}
		}
		if err := emit(chunk); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (r *ScriptedResponder) chunkWords() int {
	if r.ChunkWords <= 0 {
		return 3
	}
	return r.ChunkWords
}

func (r *ScriptedResponder) compose(req Request) string {
	name := "your coach"
	if req.Persona != nil {
		name = req.Persona.Name
	}

	if r.Oblivious || req.Goal == nil {
		return fmt.Sprintf("Hi, I'm %s! I'd love to help. What goal are you working on right now? "+
			"Tell me a bit about it and we'll figure out the next step together.", name)
	}

	g := req.Goal
	var b strings.Builder
	fmt.Fprintf(&b, "Absolutely! I can see you're working on \"%s\".", g.Title)
	if g.TargetUnit != "" && g.Remaining() != 0 {
		fmt.Fprintf(&b, " You're at %s %s and aiming for %s %s, so that's %s %s to go",
			goal.FormatValue(g.CurrentValue), g.TargetUnit,
			goal.FormatValue(g.TargetValue), g.TargetUnit,
			goal.FormatValue(absFloat(g.Remaining())), g.TargetUnit)
		if g.TargetDate != "" {
			fmt.Fprintf(&b, " by %s", g.TargetDate)
		}
		b.WriteString(".")
	}
	if req.Persona != nil && req.Persona.PromptHint != "" {
		b.WriteString(" Let's keep it sustainable: small changes you can repeat every week add up.")
	}
	b.WriteString(" Want to start with a simple plan for the next seven days?")
	return b.String()
}

// splitChunks 把文本按 n 个词一组切分，保留原有空白，拼接后与原文一致。
func splitChunks(text string, n int) []string {
	parts := strings.SplitAfter(text, " ")
	var chunks []string
	for i := 0; i < len(parts); i += n {
		end := i + n
		if end > len(parts) {
			end = len(parts)
		}
		chunk := strings.Join(parts[i:end], "")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
