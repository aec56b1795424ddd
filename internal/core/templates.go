package core

var gibberishReplies = []string{
	"I'm sorry, but I don't understand what you just said. 🤔 Could you please rephrase that?",
	"Hmm, that message seems a bit scrambled. 🔤 Could you try typing that again?",
	"I didn't quite catch that! 😅 Could you please write that in a clearer way?",
	"It looks like there might be a typing error. ⌨️ Could you try again?",
	"I'm having trouble understanding that message. 🤷 Could you please be more specific?",
}

const gibberishEscalation = "I'm having trouble understanding your messages. 😔 Would you like me to connect you with a human support agent, or perhaps you could try describing your issue step by step?"

var greetingReplies = []string{
	"Hello there! 👋 I'm your friendly IT Support Assistant. I'm here to help you solve tech problems and answer questions!",
	"Hi! 😊 Great to see you! I'm ready to help with any IT issues or questions you might have.",
	"Hey! 🌟 Welcome to IT Support! I'm here to make your tech troubles disappear. What can I help you with?",
	"Hello! 🤖 I'm your virtual IT assistant. Whether it's passwords, emails, or any tech hiccups, I've got you covered!",
	"Hi there! ✨ I'm excited to help you today. What technology challenge can we tackle together?",
}

var gratitudeReplies = []string{
	"You're very welcome! 😊 I'm happy I could help. Is there anything else you need assistance with?",
	"My pleasure! 🌟 That's what I'm here for. Feel free to ask if you have any other questions!",
	"Glad I could help! 💫 Don't hesitate to reach out if you run into any other issues.",
	"You're welcome! 🤗 It makes me happy when I can solve problems for you. Anything else on your mind?",
	"Anytime! ✨ I love helping solve tech puzzles. Is there anything else I can assist you with today?",
}

var farewellReplies = []string{
	"Goodbye! 👋 Feel free to come back anytime you need help. Have a wonderful day!",
	"See you later! 🌟 Remember, I'm always here when you need IT support. Take care!",
	"Farewell! 💫 It was great helping you today. Don't be a stranger if you need more assistance!",
	"Bye for now! 🤖 I'll be here whenever you need tech support. Have an amazing day!",
	"Take care! ✨ Thanks for chatting with me. I'm always ready to help with your IT needs!",
}

var welcomeMessages = []string{
	"Hello! 👋 I'm your friendly IT Support Assistant! I'm here 24/7 to help you solve technology problems, answer questions, and make your digital life easier. What can I help you with today?",
	"Hi there! 🌟 Welcome to Omnitak IT Support! I'm your virtual assistant, ready to tackle any tech challenges you might have. From password resets to software troubleshooting, I've got you covered!",
	"Greetings! 🤖 I'm your personal IT helper, filled with knowledge about all things tech. Whether you need quick fixes or detailed guidance, I'm here to assist!",
	"Hey! ✨ I'm your smart IT companion! I can help you solve problems, search our knowledge base, and even create support tickets when needed. What technology puzzle can we solve together today?",
}

var escalationRequestReplies = []string{
	"Of course! 🎫 I'll pass this conversation to our support team so a human agent can pick it up.",
	"No problem! 👤 Let me get a member of the IT team involved for you.",
}

// Article replies take the article title and excerpt.
const (
	questionArticleReply = "Great question! 🎯 I found this in our knowledge base:\n\n**%s**\n\n%s\n\nWould you like me to help you with anything else related to this?"
	generalArticleReply  = "I found something that might help! 🔍\n\n**%s**\n%s\n\nDoes this answer your question, or would you like me to search for something more specific?"
)

const clarificationReply = "I want to help you, but I need a bit more information! 🤔 Could you tell me more about:\n\n" +
	"• What specific issue you're experiencing?\n" +
	"• What type of technology or software is involved?\n" +
	"• What you were trying to do when the problem occurred?\n\n" +
	"Or I can search our knowledge base - just let me know what topic you'd like me to look up! 📚"

const fallbackReply = "I apologize, but I'm experiencing some technical difficulties right now. 🤖💔 Please try again in a moment, or feel free to create a support ticket for immediate assistance!"

// HandOffReply is sent instead of a composed answer once a session has been
// escalated. It takes the ticket reference.
const HandOffReply = "Your conversation has been handed over to our support team (ticket %s). 🎫 An agent will follow up with you shortly; anything you add here will be included in the ticket."

// topicReply is the per-bucket wording: ArticleReply (title, excerpt) when the
// knowledge base has a match, Canned otherwise.
type topicReply struct {
	ArticleReply string
	Canned       string
}

var topicReplies = map[MessageType]topicReply{
	MessagePasswordHelp: {
		ArticleReply: "🔐 Password troubles? I can help! Here's what I found:\n\n**%s**\n%s\n\nWould you like me to create a support ticket for immediate password reset assistance?",
		Canned:       "🔐 For password issues, I can help you! Our IT team can reset your password quickly. Would you like me to create a support ticket for you? Or you can try our self-service password reset portal.",
	},
	MessageEmailProblem: {
		ArticleReply: "📧 Email problems? Let me help! I found this:\n\n**%s**\n%s\n\nNeed more specific help? I can create a support ticket for you!",
		Canned:       "📧 Email issues can be frustrating! I'm here to help. Common solutions include checking your internet connection, restarting Outlook, or clearing your cache. Would you like me to search for more specific solutions or create a support ticket?",
	},
	MessageNetworkIssue: {
		ArticleReply: "🌐 Network trouble? Here's what our knowledge base says:\n\n**%s**\n%s\n\nIf that doesn't sort it out, I can create a support ticket for our network specialists!",
		Canned:       "🌐 Network connectivity issues? Let's troubleshoot! First, try:\n\n1️⃣ Check if your WiFi is connected\n2️⃣ Restart your router\n3️⃣ Try a different network\n\nIf these don't work, I can create a support ticket for our network specialists!",
	},
	MessageHardwareProblem: {
		ArticleReply: "🖨️ Printer giving you trouble? I found this guide:\n\n**%s**\n%s\n\nStill not working? I can help you create a support ticket!",
		Canned:       "🖨️ Printer giving you trouble? Here are some quick fixes:\n\n1️⃣ Check if the printer is turned on and connected\n2️⃣ Restart both printer and computer\n3️⃣ Check for paper jams or low ink\n\nStill not working? I can help you create a support ticket!",
	},
	MessageSoftwareProblem: {
		ArticleReply: "💻 Software problems? This article should help:\n\n**%s**\n%s\n\nIf the problem persists, I can create a support ticket for you!",
		Canned:       "💻 Software problems? I understand how frustrating that can be! Try:\n\n1️⃣ Closing and reopening the application\n2️⃣ Restarting your computer\n3️⃣ Checking for software updates\n\nStill stuck? Tell me which application it is, or I can create a support ticket for you!",
	},
	MessageGeneralInquiry: {
		Canned: "I'm doing fantastic! 🤖✨ I'm always energized and ready to help solve IT problems. How are you doing? Is there anything tech-related I can help you with today?",
	},
}
