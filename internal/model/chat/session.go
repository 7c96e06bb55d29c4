package chat

import "fmt"

// TitleLimit is the number of characters kept when a title is derived from the first message.
const TitleLimit = 30

// Session is one conversation thread owned by a single identity.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// DefaultTitle names the n-th session of a collection (1-based).
func DefaultTitle(n int) string {
	return fmt.Sprintf("New Chat %d", n)
}

// TitleFromContent derives a session title from the first user message.
func TitleFromContent(content string) string {
	runes := []rune(content)
	if len(runes) > TitleLimit {
		return string(runes[:TitleLimit]) + "..."
	}
	return content
}

// Clone returns a copy whose message slice does not alias s.
func (s Session) Clone() Session {
	cloned := s
	cloned.Messages = make([]Message, len(s.Messages))
	copy(cloned.Messages, s.Messages)
	return cloned
}
