package domain

// Update is one inbound chat event, already flattened from the platform's
// message/callback split. Exactly one of Text or CallbackData is meaningful.
type Update struct {
	UpdateID  int64
	ChatID    int64
	MessageID int64
	SenderID  int64

	// Text is set for typed messages and keyboard-label presses.
	Text string

	// CallbackID/CallbackData are set for inline-keyboard presses.
	CallbackID   string
	CallbackData string
}

// IsCallback reports whether the update is an inline-keyboard press.
func (u *Update) IsCallback() bool {
	return u.CallbackID != ""
}
