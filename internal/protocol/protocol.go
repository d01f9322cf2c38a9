// Package protocol decides how tool calls are read off the model's output:
// native structured calls carrying a call id, or legacy XML tags embedded in
// free text. A task resolves its protocol once and then locks it; a resumed
// task re-derives the lock from its transcript so the wire format never
// switches mid-conversation.
package protocol

import (
	"github.com/codefionn/agentloop/internal/config"
	"github.com/codefionn/agentloop/internal/transcript"
)

// Protocol is the tool-call wire format of a task.
type Protocol int

const (
	// None means no protocol has been resolved yet.
	None Protocol = iota
	// Native means the transport delivers structured {id, name, arguments}
	// objects.
	Native
	// XML means calls are embedded as tagged text in the model output.
	XML
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case Native:
		return "native"
	case XML:
		return "xml"
	default:
		return "none"
	}
}

// xmlOnlyProviders cannot carry structured tool calls; XML is forced for
// them regardless of defaults.
var xmlOnlyProviders = map[string]bool{
	"text-completion": true,
	"legacy-gateway":  true,
}

// Resolve picks the protocol for a task. Precedence, most specific first:
// an existing task-level lock, a hard per-provider override, then the
// native default.
func Resolve(settings *config.Settings, locked Protocol) Protocol {
	if locked != None {
		return locked
	}
	if settings != nil && xmlOnlyProviders[settings.ProviderID] {
		return XML
	}
	return Native
}

// DetectFromHistory scans a transcript backward for the most recent
// assistant turn containing a tool call and inspects that turn's last
// tool-call block. A call id proves Native; its absence proves XML. Returns
// None only when no tool call has ever occurred.
func DetectFromHistory(messages []transcript.Message) Protocol {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != transcript.RoleAssistant {
			continue
		}
		var last *transcript.Block
		for j := range msg.Blocks {
			if msg.Blocks[j].Type == transcript.BlockToolCall {
				last = &msg.Blocks[j]
			}
		}
		if last == nil {
			continue
		}
		if last.CallID != "" {
			return Native
		}
		return XML
	}
	return None
}
