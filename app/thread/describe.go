package thread

import (
	"context"
	"fmt"
	"strings"

	e "nuclight.org/thread-guard-bot/pkg/entities"
)

// DescribeChain renders the reply ancestry of msg, one level per block, for
// the /debug_chain command.
func (c *Classifier) DescribeChain(ctx context.Context, msg *e.Message, maxDepth int) string {
	var sb strings.Builder

	current := msg
	for depth := 0; current != nil; depth++ {
		indent := strings.Repeat("  ", depth)
		if depth >= maxDepth {
			fmt.Fprintf(&sb, "%sreached max depth", indent)
			return sb.String()
		}

		fmt.Fprintf(&sb, "%sLevel %d: id %d from %s", indent, depth, current.ID, senderLabel(current))
		if current.ThreadID != 0 {
			fmt.Fprintf(&sb, " [thread: %d]", current.ThreadID)
		}
		sb.WriteByte('\n')

		if c.IsChannelPost(current) {
			fmt.Fprintf(&sb, "%s   CHANNEL POST\n", indent)
		}

		parent, err := c.parents().Parent(ctx, current)
		if err != nil {
			fmt.Fprintf(&sb, "%s   parent lookup failed", indent)
			return sb.String()
		}

		if parent == nil {
			fmt.Fprintf(&sb, "%s   END", indent)
			return sb.String()
		}

		fmt.Fprintf(&sb, "%s   reply to: %d\n", indent, parent.ID)
		current = parent
	}

	return sb.String()
}

func senderLabel(msg *e.Message) string {
	if msg.From != nil {
		return fmt.Sprint(msg.From.ID)
	}

	if msg.SenderChatID != 0 {
		return fmt.Sprintf("chat %d", msg.SenderChatID)
	}

	return "N/A"
}
