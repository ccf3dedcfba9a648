package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/goalprobe/internal/config"
	"github.com/zhouzirui/goalprobe/internal/model/consultation"
)

// Service streams replies from an Ark chat model through an eino chain.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newServiceWithModel(ctx, chatModel)
}

func newServiceWithModel(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
	}, nil
}

// Stream implements Responder.
func (s *Service) Stream(ctx context.Context, req Request, emit func(chunk string) error) (string, error) {
	stream, err := s.chain.Stream(ctx, s.buildChainInput(req))
	if err != nil {
		return "", fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("ai stream recv failed: %w", recvErr)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if err := emit(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	if len(chunks) == 0 {
		return "", nil
	}

	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("concat ai chunks failed: %w", err)
	}

	log.Printf("[ai] streamed reply for consultation=%s, length=%d", req.ConsultationID, len(merged.Content))
	return merged.Content, nil
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  BuildSystemPrompt(req.Persona, req.Goal),
		"history": buildHistoryMessages(req.History),
		"query":   req.UserText,
	}
}

func buildHistoryMessages(messages []consultation.Message) []*schema.Message {
	const historyLimit = 10

	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case consultation.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case consultation.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
