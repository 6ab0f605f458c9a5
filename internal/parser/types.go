package parser

// Email represents a decoded MIME message
type Email struct {
	Subject     string
	Headers     map[string]string
	Text        string
	HTML        string
	Attachments []Part
}

// Part represents a decoded attachment part
type Part struct {
	Filename    string
	ContentType string
	Data        []byte
	Inline      bool
	ContentID   string
}
