package promptctx_test

import (
	"fmt"
	"time"

	"github.com/jv92admin/alfred/conversation"
)

// conversationWith builds a conversation with n recent turns, each with a
// distinct user message ("msg-1".."msg-n") and a one-step execution summary.
func conversationWith(n int) conversation.Conversation {
	var recent []conversation.Turn
	for i := 1; i <= n; i++ {
		recent = append(recent, conversation.Turn{
			TurnID:            fmt.Sprintf("%d", i),
			UserMessage:       fmt.Sprintf("msg-%d", i),
			AssistantResponse: fmt.Sprintf("reply-%d", i),
			ExecutionSummary:  conversation.ExecutionSummary{StepsCompleted: 1, StepsTotal: 1},
			CreatedAt:         time.Now(),
		})
	}
	return conversation.Conversation{UserID: "u1", Recent: recent}
}
