package chat

// Notification kinds handed to the external notification collaborator.
const (
	NotifyNewMessage   = "new_message"
	NotifyConversation = "conversation_started"
)

// NotificationBridge is the fire-and-forget hand-off to the external
// notification system (push/email internals live elsewhere). Implementations
// must never block the send path; errors are logged and swallowed by the
// caller, a notification outage cannot fail a send.
type NotificationBridge interface {
	Notify(userID, kind string, payload interface{}) error
}
