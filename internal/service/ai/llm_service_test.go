package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

// fakeChatModel streams a fixed reply and records the prompt it received.
type fakeChatModel struct {
	chunks []string
	input  []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	return schema.AssistantMessage(strings.Join(f.chunks, ""), nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	messages := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		messages = append(messages, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(messages), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

func TestServiceStreamsChainOutput(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Let's get you ", "to 165 lbs ", "by July."}}
	svc, err := newServiceWithModel(context.Background(), fake)
	if err != nil {
		t.Fatalf("newServiceWithModel err: %v", err)
	}

	g := goal.Fixture()
	var streamed []string
	text, err := svc.Stream(context.Background(), Request{ConsultationID: "c1", Persona: wellnessPersona(), Goal: &g, UserText: "help"}, func(chunk string) error {
		streamed = append(streamed, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	if text != "Let's get you to 165 lbs by July." {
		t.Fatalf("unexpected merged reply %q", text)
	}
	if len(streamed) != 3 {
		t.Fatalf("expected 3 streamed chunks, got %d", len(streamed))
	}

	if len(fake.input) < 2 {
		t.Fatalf("expected system and user messages, got %d", len(fake.input))
	}
	if fake.input[0].Role != schema.System || !strings.Contains(fake.input[0].Content, g.Title) {
		t.Fatalf("system prompt missing goal context: %+v", fake.input[0])
	}
	if last := fake.input[len(fake.input)-1]; last.Role != schema.User || last.Content != "help" {
		t.Fatalf("unexpected user message: %+v", last)
	}
}
