package discord

// Message is a channel message as returned by the messages endpoint.
type Message struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	Embeds    []Embed `json:"embeds"`
	Timestamp string  `json:"timestamp"`
}

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Footer struct {
	Text string `json:"text"`
}
