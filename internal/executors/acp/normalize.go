package acp

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/coder/acp-go-sdk"

	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

// NormalizeLogs converts raw captured output into the backend-agnostic
// normalized log, in place. Only entries appended since the previous pass
// are processed, so repeated calls never duplicate output. Absolute file
// paths under worktreePath are relativized for display.
func (h *Harness) NormalizeLogs(store *msgstore.Store, worktreePath string) {
	for _, entry := range store.DrainUnnormalized() {
		switch entry.Kind {
		case msgstore.KindStderr:
			store.PushNormalized(msgstore.NormalizedEntry{
				Kind:      msgstore.NormalizedStderr,
				Text:      entry.Text,
				Timestamp: entry.Timestamp,
			})
		case msgstore.KindRawUpdate:
			var n acp.SessionNotification
			if err := json.Unmarshal(entry.Payload, &n); err != nil {
				store.PushNormalized(msgstore.NormalizedEntry{
					Kind:      msgstore.NormalizedStderr,
					Text:      fmt.Sprintf("unparseable update: %v", err),
					Timestamp: entry.Timestamp,
				})
				continue
			}
			if norm := convertNotification(n, worktreePath); norm != nil {
				norm.Timestamp = entry.Timestamp
				store.PushNormalized(*norm)
			}
		}
	}
}

// convertNotification maps one session update onto a normalized entry.
// Update variants with no user-facing rendering return nil.
func convertNotification(n acp.SessionNotification, worktreePath string) *msgstore.NormalizedEntry {
	u := n.Update

	switch {
	case u.AgentMessageChunk != nil:
		if u.AgentMessageChunk.Content.Text != nil {
			return &msgstore.NormalizedEntry{
				Kind: msgstore.NormalizedMessage,
				Text: u.AgentMessageChunk.Content.Text.Text,
			}
		}

	case u.AgentThoughtChunk != nil:
		if u.AgentThoughtChunk.Content.Text != nil {
			return &msgstore.NormalizedEntry{
				Kind: msgstore.NormalizedReasoning,
				Text: u.AgentThoughtChunk.Content.Text.Text,
			}
		}

	case u.ToolCall != nil:
		status := string(u.ToolCall.Status)
		if status == "" {
			status = "running"
		}
		var paths []string
		for _, loc := range u.ToolCall.Locations {
			paths = append(paths, relativizePath(loc.Path, worktreePath))
		}
		var input json.RawMessage
		if u.ToolCall.RawInput != nil {
			if raw, err := json.Marshal(u.ToolCall.RawInput); err == nil {
				input = raw
			}
		}
		return &msgstore.NormalizedEntry{
			Kind:       msgstore.NormalizedToolCall,
			Text:       u.ToolCall.Title,
			ToolCallID: string(u.ToolCall.ToolCallId),
			ToolName:   string(u.ToolCall.Kind),
			ToolInput:  input,
			Status:     status,
			Paths:      paths,
		}

	case u.ToolCallUpdate != nil:
		status := ""
		if u.ToolCallUpdate.Status != nil {
			status = string(*u.ToolCallUpdate.Status)
		}
		if status == "completed" {
			status = "complete"
		}
		return &msgstore.NormalizedEntry{
			Kind:       msgstore.NormalizedToolCall,
			ToolCallID: string(u.ToolCallUpdate.ToolCallId),
			Status:     status,
		}

	case u.Plan != nil:
		var b strings.Builder
		for i, e := range u.Plan.Entries {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fmt.Sprintf("[%s] %s", e.Status, e.Content))
		}
		return &msgstore.NormalizedEntry{
			Kind: msgstore.NormalizedPlan,
			Text: b.String(),
		}
	}

	return nil
}

// relativizePath strips the worktree prefix so logs show repo-relative
// paths. Paths outside the worktree pass through untouched.
func relativizePath(path, worktreePath string) string {
	if worktreePath == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(worktreePath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
