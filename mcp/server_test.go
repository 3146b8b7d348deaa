package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mbocsi/nativebridge/services"
	"github.com/mbocsi/nativebridge/transport"
)

func newTestServer() *MCPServer {
	tr := transport.NewWSTransport()
	return NewMCPServer(services.NewBridgeService(tr))
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("Expected tool result content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestListSessions_Empty(t *testing.T) {
	s := newTestServer()

	res, err := s.handleListSessions(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("list_sessions failed: %v", err)
	}
	if got := resultText(t, res); got != "[]" {
		t.Errorf("Expected empty list, got %s", got)
	}
}

func TestListTopics_Empty(t *testing.T) {
	s := newTestServer()

	res, err := s.handleListTopics(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("list_topics failed: %v", err)
	}
	if got := resultText(t, res); got != "[]" {
		t.Errorf("Expected no topics, got %s", got)
	}
}

func TestSendMessage_RequiresTopic(t *testing.T) {
	s := newTestServer()

	var req mcp.CallToolRequest
	req.Params.Name = "send_message"
	req.Params.Arguments = map[string]any{"payload": map[string]any{"value": "x"}}

	res, err := s.handleSendMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.IsError {
		t.Error("Expected tool error when topic is missing")
	}
}

func TestSendMessage_UnknownSession(t *testing.T) {
	s := newTestServer()

	var req mcp.CallToolRequest
	req.Params.Name = "send_message"
	req.Params.Arguments = map[string]any{"topic": "t", "session": "ws-missing"}

	res, err := s.handleSendMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.IsError {
		t.Error("Expected tool error for unknown session")
	}
}

func TestSendMessage_BroadcastWithoutSessions(t *testing.T) {
	s := newTestServer()

	var req mcp.CallToolRequest
	req.Params.Name = "send_message"
	req.Params.Arguments = map[string]any{"topic": "t", "payload": map[string]any{"value": "x"}}

	res, err := s.handleSendMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "Message sent on topic t to 0 session(s)" {
		t.Errorf("Unexpected result %q", got)
	}
}
