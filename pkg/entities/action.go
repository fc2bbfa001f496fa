package entities

type Action struct {
	Kind ActionKind
	Note string
}

type ActionKind string

const (
	// ActionKindNoop is a noop action meaning nothing has to be done with a message
	ActionKindNoop ActionKind = "noop"

	// ActionKindWarn indicates that the author was handled as an off-topic poster:
	// warned (unless on cooldown), reported to the admin and the message is
	// scheduled for deletion
	ActionKindWarn ActionKind = "warn"
)
