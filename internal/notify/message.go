package notify

// Field is one labelled line of an alert.
type Field struct {
	Name  string
	Value string
}

// Message is a channel-neutral alert. Each Sender renders it in its own
// markup.
type Message struct {
	Event  string
	Title  string
	Fields []Field
	// Note is free text shown after the fields.
	Note string
}

// Add appends a field, skipping empty values.
func (m *Message) Add(name, value string) {
	if value != "" {
		m.Fields = append(m.Fields, Field{Name: name, Value: value})
	}
}
