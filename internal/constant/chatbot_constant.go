package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"
)

const (
	FeedbackTypeHelpful    = "helpful"
	FeedbackTypeNotHelpful = "not_helpful"
	FeedbackTypeIncorrect  = "incorrect"
	FeedbackTypeOther      = "other"
)

const (
	ExperienceBeginner     = "beginner"
	ExperienceIntermediate = "intermediate"
	ExperienceExpert       = "expert"
)

const (
	CommunicationConcise  = "concise"
	CommunicationDetailed = "detailed"
	CommunicationFriendly = "friendly"
)

// DefaultSessionTitle is used until the first turn is persisted.
const DefaultSessionTitle = "New conversation"
