package domain

// Message is a LINE Messaging API message object. Only text and flex are produced.
type Message struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	AltText  string         `json:"altText,omitempty"`
	Contents *FlexComponent `json:"contents,omitempty"`
}

// FlexComponent covers the subset of Flex bubble/box/text/separator fields the
// card builder uses.
type FlexComponent struct {
	Type     string          `json:"type"`
	Size     string          `json:"size,omitempty"`
	Body     *FlexComponent  `json:"body,omitempty"`
	Layout   string          `json:"layout,omitempty"`
	Spacing  string          `json:"spacing,omitempty"`
	Margin   string          `json:"margin,omitempty"`
	Contents []FlexComponent `json:"contents,omitempty"`
	Text     string          `json:"text,omitempty"`
	Weight   string          `json:"weight,omitempty"`
	Color    string          `json:"color,omitempty"`
	Align    string          `json:"align,omitempty"`
	Flex     *int            `json:"flex,omitempty"`
	Wrap     bool            `json:"wrap,omitempty"`
}

// NewTextMessage builds a plain text message.
func NewTextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}
