package chatwoot

// Conversation is a single conversation as returned by the Chatwoot
// conversation listing endpoints. Attribute bags are loosely typed; the
// analytics package resolves them with contact-over-conversation precedence.
type Conversation struct {
	ID                     int                    `json:"id"`
	Status                 string                 `json:"status"`
	InboxID                int                    `json:"inbox_id"`
	Labels                 []string               `json:"labels"`
	Timestamp              int64                  `json:"timestamp"`
	CustomAttributes       map[string]interface{} `json:"custom_attributes"`
	Meta                   Meta                   `json:"meta"`
	LastNonActivityMessage *Message               `json:"last_non_activity_message,omitempty"`
}

// Meta carries conversation metadata; only the sender is used here.
type Meta struct {
	Sender Sender `json:"sender"`
}

// Sender is the contact profile attached to a conversation.
type Sender struct {
	Name             string                 `json:"name"`
	Email            string                 `json:"email"`
	PhoneNumber      string                 `json:"phone_number"`
	Thumbnail        string                 `json:"thumbnail"`
	CustomAttributes map[string]interface{} `json:"custom_attributes"`
}

// Message is the last non-activity message of a conversation.
type Message struct {
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// HasLabel reports whether the conversation carries the given label.
func (c *Conversation) HasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// HasAnyLabel reports whether the conversation carries at least one of the
// given labels.
func (c *Conversation) HasAnyLabel(labels ...string) bool {
	for _, l := range labels {
		if c.HasLabel(l) {
			return true
		}
	}
	return false
}

// Inbox maps an inbox id to its channel type and display name.
type Inbox struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ChannelType string `json:"channel_type"`
}

// Contact is a contact returned by the contact search endpoint.
type Contact struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// PageMeta is the pagination metadata attached to a conversation page.
type PageMeta struct {
	Count    int `json:"count"`
	AllCount int `json:"all_count"`
}

// ConversationPage is one page of conversations plus its metadata.
type ConversationPage struct {
	Payload []Conversation `json:"payload"`
	Meta    PageMeta       `json:"meta"`
}
