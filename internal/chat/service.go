// Package chat manages conversation threads and drives the assistant loop:
// user message in, tool calls executed against the calendar, assistant
// reply out.
package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/llm"
	"calendar-chat/internal/storage"
	"calendar-chat/internal/tools"
)

// Message roles as stored and as sent to the model
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// maxToolRounds bounds how many tool-execution round trips one user
// message may trigger before the model is forced to answer in text.
const maxToolRounds = 5

const systemPrompt = `You are a calendar assistant. You help the user read and manage their Google Calendar through the provided tools.

Rules:
- Use getEvents for any question about existing or upcoming events; never answer from memory.
- Before creating, updating, or deleting an event, restate what you are about to do.
- Times in tool arguments must be RFC3339 with a time zone offset.
- Keep answers short and conversational.`

// Completer is the slice of the llm client the service needs
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, toolDefs []llm.Tool) (*llm.CompletionResult, error)
}

// ToolRunner executes the model's tool calls
type ToolRunner interface {
	ExecuteAll(ctx context.Context, userID string, calls []llm.ToolCall) []tools.Result
}

// Service owns threads and messages and runs the assistant loop
type Service struct {
	store    storage.ChatStore
	llm      Completer
	executor ToolRunner
	logger   logging.Logger
}

// NewService wires the chat service
func NewService(store storage.ChatStore, completer Completer, executor ToolRunner) *Service {
	return &Service{
		store:    store,
		llm:      completer,
		executor: executor,
		logger:   logging.GetGlobalLogger(),
	}
}

// CreateThread starts a new conversation for the user
func (s *Service) CreateThread(ctx context.Context, userID, title string) (*storage.Thread, error) {
	if title == "" {
		title = "New conversation"
	}
	now := time.Now()
	thread := &storage.Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// ListThreads returns the user's threads, most recently updated first
func (s *Service) ListThreads(ctx context.Context, userID string) ([]*storage.Thread, error) {
	return s.store.ListThreads(ctx, userID)
}

// GetThread loads a thread the user owns. Threads of other users surface
// as not found, never as forbidden, so thread IDs cannot be probed.
func (s *Service) GetThread(ctx context.Context, userID, threadID string) (*storage.Thread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != userID {
		return nil, errors.NotFoundError("thread")
	}
	return thread, nil
}

// RenameThread changes a thread's title
func (s *Service) RenameThread(ctx context.Context, userID, threadID, title string) error {
	if title == "" {
		return errors.ValidationError("thread title is required")
	}
	if _, err := s.GetThread(ctx, userID, threadID); err != nil {
		return err
	}
	return s.store.RenameThread(ctx, threadID, title)
}

// DeleteThread removes a thread and its messages
func (s *Service) DeleteThread(ctx context.Context, userID, threadID string) error {
	if _, err := s.GetThread(ctx, userID, threadID); err != nil {
		return err
	}
	return s.store.DeleteThread(ctx, threadID)
}

// History returns the thread's messages in order
func (s *Service) History(ctx context.Context, userID, threadID string) ([]*storage.Message, error) {
	if _, err := s.GetThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, threadID)
}

// SendMessage appends the user's message, runs the assistant loop until the
// model answers in text, and returns the stored assistant reply. Tool-call
// rounds and their results are persisted so the full exchange survives a
// reload.
func (s *Service) SendMessage(ctx context.Context, userID, threadID, content string) (*storage.Message, error) {
	if content == "" {
		return nil, errors.ValidationError("message content is required")
	}
	if _, err := s.GetThread(ctx, userID, threadID); err != nil {
		return nil, err
	}

	userMsg := &storage.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	conversation, err := s.buildConversation(ctx, threadID)
	if err != nil {
		return nil, err
	}

	toolDefs := tools.CalendarTools()
	for round := 0; ; round++ {
		if round == maxToolRounds {
			// Final round runs without tools so the model must answer.
			toolDefs = nil
		}

		result, err := s.llm.Complete(ctx, conversation, toolDefs)
		if err != nil {
			return nil, err
		}

		if len(result.ToolCalls) == 0 {
			return s.storeAssistantReply(ctx, threadID, result.Content, nil)
		}
		if round >= maxToolRounds {
			return nil, errors.UpstreamError("model kept requesting tools after they were withdrawn", 0)
		}

		s.logger.Debug("Assistant requested tools",
			logging.Field{Key: "thread_id", Value: threadID},
			logging.Field{Key: "round", Value: round},
			logging.Field{Key: "calls", Value: len(result.ToolCalls)},
		)

		toolResults := s.executor.ExecuteAll(ctx, userID, result.ToolCalls)

		// Persist the tool round before continuing.
		if _, err := s.storeAssistantReply(ctx, threadID, result.Content, result.ToolCalls); err != nil {
			return nil, err
		}
		for _, tr := range toolResults {
			if err := s.storeToolResult(ctx, threadID, tr); err != nil {
				return nil, err
			}
		}

		conversation = append(conversation, llm.Message{
			Role:      RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, tr := range toolResults {
			conversation = append(conversation, toolResultMessage(tr))
		}
	}
}

func (s *Service) buildConversation(ctx context.Context, threadID string) ([]llm.Message, error) {
	history, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	conversation := make([]llm.Message, 0, len(history)+1)
	conversation = append(conversation, llm.Message{Role: RoleSystem, Content: systemPrompt})
	for _, msg := range history {
		entry := llm.Message{Role: msg.Role, Content: msg.Content}
		if msg.ToolCalls != "" {
			switch msg.Role {
			case RoleAssistant:
				if err := json.Unmarshal([]byte(msg.ToolCalls), &entry.ToolCalls); err != nil {
					s.logger.Warn("Skipping malformed stored tool calls",
						logging.Field{Key: "message_id", Value: msg.ID},
					)
				}
			case RoleTool:
				entry.ToolCallID = msg.ToolCalls
			}
		}
		conversation = append(conversation, entry)
	}
	return conversation, nil
}

func (s *Service) storeAssistantReply(ctx context.Context, threadID, content string, calls []llm.ToolCall) (*storage.Message, error) {
	msg := &storage.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if len(calls) > 0 {
		encoded, err := json.Marshal(calls)
		if err != nil {
			return nil, errors.InternalError("failed to encode tool calls", err)
		}
		msg.ToolCalls = string(encoded)
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// storeToolResult persists a tool round result as a tool-role message. The
// ToolCalls column doubles as the tool_call_id for tool messages.
func (s *Service) storeToolResult(ctx context.Context, threadID string, tr tools.Result) error {
	content := tr.Content
	if !tr.Success {
		content = tr.Error
	}
	return s.store.AppendMessage(ctx, &storage.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      RoleTool,
		Content:   content,
		ToolCalls: tr.ToolCallID,
		CreatedAt: time.Now(),
	})
}

func toolResultMessage(tr tools.Result) llm.Message {
	content := tr.Content
	if !tr.Success {
		content = tr.Error
	}
	return llm.Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: tr.ToolCallID,
	}
}
