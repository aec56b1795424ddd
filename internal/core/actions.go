package core

// QuickAction is a one-tap reply offered to the user. Message is sent as the
// user's next chat message when tapped.
type QuickAction struct {
	Label    string `json:"label"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

const escalationCategory = "Escalation"

var (
	passwordActions = []QuickAction{
		{Label: "🔐 Reset Password", Message: "I need to reset my password", Category: "Password"},
		{Label: "🔑 Account Locked", Message: "My account is locked", Category: "Password"},
		{Label: "📞 Call IT Support", Message: "I need to speak with IT support", Category: escalationCategory},
	}
	emailActions = []QuickAction{
		{Label: "📧 Can't Send Email", Message: "I can't send emails", Category: "Email"},
		{Label: "📨 Not Receiving Email", Message: "I'm not receiving emails", Category: "Email"},
		{Label: "⚙️ Outlook Issues", Message: "Outlook is not working properly", Category: "Email"},
	}
	networkActions = []QuickAction{
		{Label: "🌐 No Internet", Message: "I have no internet connection", Category: "Network"},
		{Label: "📶 Slow Connection", Message: "Internet is very slow", Category: "Network"},
		{Label: "🔌 Network Troubleshooting", Message: "Help me troubleshoot network issues", Category: "Network"},
	}
	defaultActions = []QuickAction{
		{Label: "🎫 Create Ticket", Message: "I need to create a support ticket", Category: "General"},
		{Label: "📚 Browse Knowledge Base", Message: "I want to search the knowledge base", Category: "General"},
		{Label: "👤 Speak to Agent", Message: "I need to talk to a human agent", Category: escalationCategory},
	}
	escalationActions = []QuickAction{
		{Label: "🎫 Create Ticket", Message: "I need to create a support ticket", Category: escalationCategory},
		{Label: "👤 Speak to Agent", Message: "I need to talk to a human agent", Category: escalationCategory},
	}
)

// QuickActionsFor returns the suggested actions for a message type. The
// returned slice is a fresh copy.
func QuickActionsFor(t MessageType) []QuickAction {
	var src []QuickAction
	switch t {
	case MessagePasswordHelp:
		src = passwordActions
	case MessageEmailProblem:
		src = emailActions
	case MessageNetworkIssue:
		src = networkActions
	default:
		src = defaultActions
	}
	return append([]QuickAction(nil), src...)
}

// withEscalation appends the escalation actions that are not already offered.
func withEscalation(actions []QuickAction) []QuickAction {
	seen := make(map[string]bool, len(actions))
	for _, a := range actions {
		seen[a.Message] = true
	}
	for _, a := range escalationActions {
		if !seen[a.Message] {
			actions = append(actions, a)
		}
	}
	return actions
}
