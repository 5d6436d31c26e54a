package dispatch

import (
	"fmt"
	"testing"
	"time"

	"github.com/varactor/squawk/pkg/provider/llm"
)

func TestHistoryCapsByCount(t *testing.T) {
	t.Parallel()

	h := NewHistory(3, time.Hour)
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Append(llm.RoleUser, fmt.Sprintf("turn %d", i), base.Add(time.Duration(i)*time.Second))
	}

	msgs := h.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 retained turns, got %d", len(msgs))
	}
	if msgs[0].Content != "turn 2" || msgs[2].Content != "turn 4" {
		t.Errorf("wrong turns retained: %v", msgs)
	}
}

func TestHistoryExpiresByAge(t *testing.T) {
	t.Parallel()

	h := NewHistory(10, 5*time.Minute)
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	h.Append(llm.RoleUser, "old", base)
	h.Append(llm.RoleUser, "recent", base.Add(4*time.Minute))
	h.Append(llm.RoleUser, "new", base.Add(6*time.Minute))

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 retained turns, got %d", len(msgs))
	}
	if msgs[0].Content != "recent" {
		t.Errorf("expired turn retained: %v", msgs)
	}
}

func TestHistoryPreservesOrderAndRoles(t *testing.T) {
	t.Parallel()

	h := NewHistory(10, time.Hour)
	now := time.Now()
	h.Append(llm.RoleUser, "question", now)
	h.Append(llm.RoleAssistant, "answer", now)

	msgs := h.Messages()
	if msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Errorf("roles lost: %v", msgs)
	}
}
