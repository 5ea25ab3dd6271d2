package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/model"
)

func TestIdempotencyKeyStable(t *testing.T) {
	args1 := map[string]any{"title": "buy milk", "priority": "high"}
	args2 := map[string]any{"priority": "high", "title": "buy milk"}

	key1 := model.NewIdempotencyKey("chat-1", model.ToolCreateTask, args1)
	key2 := model.NewIdempotencyKey("chat-1", model.ToolCreateTask, args2)

	// same logical content hashes identically regardless of insertion order
	gt.Value(t, key1).Equal(key2)
}

func TestIdempotencyKeyDiscriminates(t *testing.T) {
	args := map[string]any{"title": "buy milk"}

	base := model.NewIdempotencyKey("chat-1", model.ToolCreateTask, args)

	gt.Value(t, model.NewIdempotencyKey("chat-2", model.ToolCreateTask, args)).NotEqual(base)
	gt.Value(t, model.NewIdempotencyKey("chat-1", model.ToolCompleteTask, args)).NotEqual(base)
	gt.Value(t, model.NewIdempotencyKey("chat-1", model.ToolCreateTask, map[string]any{"title": "buy eggs"})).NotEqual(base)
}

func TestDecodeArgsCreateTask(t *testing.T) {
	call := model.NewToolCall("chat-1", model.ToolCreateTask, map[string]any{
		"title":  "call the dentist",
		"due_at": "2026-09-01T09:00:00Z",
		"people": []any{"dentist"},
	})

	decoded, err := call.DecodeArgs()
	gt.NoError(t, err).Required()

	args, ok := decoded.(*model.CreateTaskArgs)
	gt.Bool(t, ok).True()
	gt.Value(t, args.Title).Equal("call the dentist")
	gt.Value(t, args.Due()).NotNil()
}

func TestDecodeArgsMissingRequired(t *testing.T) {
	call := model.NewToolCall("chat-1", model.ToolCreateTask, map[string]any{
		"due_at": "2026-09-01T09:00:00Z",
	})

	_, err := call.DecodeArgs()
	gt.Error(t, err)
}

func TestDecodeArgsMalformedShape(t *testing.T) {
	// a string where an array is expected must be rejected before execution
	call := model.NewToolCall("chat-1", model.ToolCreateMemory, map[string]any{
		"content": "met alice",
		"people":  "alice",
	})

	_, err := call.DecodeArgs()
	gt.Error(t, err)
}

func TestDecodeArgsInvalidDue(t *testing.T) {
	call := model.NewToolCall("chat-1", model.ToolCreateTask, map[string]any{
		"title":  "water plants",
		"due_at": "tomorrow",
	})

	_, err := call.DecodeArgs()
	gt.Error(t, err)
}

func TestDestructiveTools(t *testing.T) {
	gt.Bool(t, model.ToolCompleteTask.Destructive()).True()
	gt.Bool(t, model.ToolCompleteListItem.Destructive()).True()
	gt.Bool(t, model.ToolCreateMemory.Destructive()).False()
	gt.Bool(t, model.ToolCreateTask.Destructive()).False()
	gt.Bool(t, model.ToolAddListItem.Destructive()).False()
}
