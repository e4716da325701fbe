package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ClareAI/astra-outbound-bridge/internal/core/model/openai"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"go.uber.org/zap"
)

// Tool name constants
const (
	ToolNameSendTextMessage        = "send_text_message"
	ToolNameScheduleFollowUp       = "schedule_follow_up"
	ToolNameRecordNote             = "record_note"
	ToolNameLookupRelationshipData = "lookup_relationship_data"
)

// ToolExecutorFunc runs one tool for a call and returns the result narrated back to the engine.
type ToolExecutorFunc func(ctx context.Context, cs *session.CallSession, argumentsJSON string) (string, error)

// ToolDefinition defines a tool with its metadata and execution logic
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Executor    ToolExecutorFunc
}

// Messenger sends text messages to the callee.
type Messenger interface {
	SendMessage(to, body string) (string, error)
}

// SessionGetter resolves the live session for a call id.
type SessionGetter func(callID string) (*session.CallSession, error)

// ToolManager manages tool definitions, routing, and execution
type ToolManager struct {
	sessions  SessionGetter
	messenger Messenger
	followUps FollowUpPublisher
	registry  map[string]*ToolDefinition
}

// NewToolManager creates a tool manager with the built-in call tools registered.
// A nil messenger or publisher makes the matching tool report that it is unavailable.
func NewToolManager(sessions SessionGetter, messenger Messenger, followUps FollowUpPublisher) *ToolManager {
	m := &ToolManager{
		sessions:  sessions,
		messenger: messenger,
		followUps: followUps,
		registry:  make(map[string]*ToolDefinition),
	}
	m.registerBuiltInTools()
	return m
}

func (m *ToolManager) registerBuiltInTools() {
	m.RegisterTool(&ToolDefinition{
		Name:        ToolNameSendTextMessage,
		Description: "Send a short SMS to the person you are speaking with, e.g. a link, address or confirmation they asked for. Tell them you are sending it before calling this.",
		Parameters:  SendTextMessageSchema,
		Executor:    m.ExecuteSendTextMessage,
	})
	m.RegisterTool(&ToolDefinition{
		Name:        ToolNameScheduleFollowUp,
		Description: "Schedule a follow-up call when the person asks to be called back or wants to continue later. Confirm the time with them first.",
		Parameters:  ScheduleFollowUpSchema,
		Executor:    m.ExecuteScheduleFollowUp,
	})
	m.RegisterTool(&ToolDefinition{
		Name:        ToolNameRecordNote,
		Description: "Record an important fact, preference or commitment the person mentions so the team can act on it after the call.",
		Parameters:  RecordNoteSchema,
		Executor:    m.ExecuteRecordNote,
	})
	m.RegisterTool(&ToolDefinition{
		Name:        ToolNameLookupRelationshipData,
		Description: "Look up what we already know about this person, such as open items, last interaction or preferred contact channel.",
		Parameters:  LookupRelationshipSchema,
		Executor:    m.ExecuteLookupRelationshipData,
	})
}

// RegisterTool registers a tool, replacing any with the same name.
func (m *ToolManager) RegisterTool(tool *ToolDefinition) {
	m.registry[tool.Name] = tool
	logger.Base().Debug("Registered tool", zap.String("name", tool.Name))
}

// Definitions returns the tool schemas sent in the session configuration.
func (m *ToolManager) Definitions() []openai.ToolDefinition {
	names := make([]string, 0, len(m.registry))
	for name := range m.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]openai.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := m.registry[name]
		defs = append(defs, openai.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// ExecuteTool is the unified entry point for all tool executions. Failures
// are folded into the returned result so the engine can tell the callee.
func (m *ToolManager) ExecuteTool(ctx context.Context, toolName, argumentsJSON, callID string) (string, bool) {
	log := logger.ForCall(callID)
	log.Info("ExecuteTool called", zap.String("tool_name", toolName))

	tool, ok := m.registry[toolName]
	if !ok || tool.Executor == nil {
		log.Warn("Tool not found in registry", zap.String("tool_name", toolName))
		return failure(fmt.Errorf("unknown tool %q", toolName)), false
	}

	cs, err := m.sessions(callID)
	if err != nil {
		log.Warn("Tool invoked for unknown call", zap.String("tool_name", toolName), zap.Error(err))
		return failure(err), false
	}

	result, err := tool.Executor(ctx, cs, argumentsJSON)
	if err != nil {
		log.Warn("Tool execution failed", zap.String("tool_name", toolName), zap.Error(err))
		return failure(err), false
	}

	log.Info("Tool executed successfully", zap.String("tool_name", toolName))
	return result, true
}

func parseArgs(argumentsJSON string, into interface{}) error {
	if strings.TrimSpace(argumentsJSON) == "" {
		argumentsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsJSON), into); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

func success(fields map[string]interface{}) string {
	out := map[string]interface{}{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func failure(err error) string {
	data, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
	return string(data)
}
