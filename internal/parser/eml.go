package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// Parse decodes a MIME message from a reader
func Parse(r io.Reader) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	parsed := &Email{Headers: map[string]string{}}

	// Subject - decoded from MIME words
	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	}

	// Full header map; later occurrences of a repeated header win
	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		parsed.Headers[strings.ToLower(fields.Key())] = value
	}

	// Parse body and attachments
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				// Keep the first text part (multipart emails repeat it)
				if parsed.Text == "" {
					parsed.Text = string(data)
				}
			case strings.HasPrefix(contentType, "text/html"):
				// Always prefer HTML if available
				parsed.HTML = string(data)
			default:
				// Non-text inline part, e.g. an embedded image
				parsed.Attachments = append(parsed.Attachments, Part{
					Filename:    params["name"],
					ContentType: contentType,
					Data:        data,
					Inline:      true,
					ContentID:   trimContentID(h.Get("Content-Id")),
				})
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment: %w", err)
			}

			parsed.Attachments = append(parsed.Attachments, Part{
				Filename:    filename,
				ContentType: contentType,
				Data:        data,
				ContentID:   trimContentID(h.Get("Content-Id")),
			})
		}
	}

	return parsed, nil
}

// trimContentID strips the angle brackets from a Content-Id header value
// Example: <part1@example.com> -> part1@example.com
func trimContentID(v string) string {
	return strings.Trim(strings.TrimSpace(v), "<>")
}
