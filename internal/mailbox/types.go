// Package mailbox implements per-recipient message storage: a
// timestamp-ordered index with oldest-first eviction, cursor pagination,
// and a single-writer actor per mailbox.
package mailbox

// TimeFormat renders UTC timestamps fixed-width, so lexical order over
// receivedAt strings equals chronological order.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// MessageRecord is one stored message. Immutable once ingested.
type MessageRecord struct {
	ID          string            `json:"id"`
	ReceivedAt  string            `json:"receivedAt"`
	Mailbox     string            `json:"mailbox"`
	To          string            `json:"to"`
	From        string            `json:"from"`
	Subject     string            `json:"subject"`
	Headers     map[string]string `json:"headers"`
	Raw         RawRef            `json:"raw"`
	Parse       ParseInfo         `json:"parse"`
	Body        Body              `json:"body"`
	Attachments []Attachment      `json:"attachments"`
}

// RawRef locates the verbatim raw message in the blob store.
type RawRef struct {
	Key string `json:"key"`
}

// ParseInfo records whether body parsing was skipped due to size.
type ParseInfo struct {
	Truncated bool  `json:"truncated"`
	MaxBytes  int64 `json:"maxBytes"`
}

// Body holds the decoded message bodies. Both are null when parsing was
// truncated or failed.
type Body struct {
	Text *string `json:"text"`
	HTML *string `json:"html"`
}

// Attachment is the stored metadata of one attachment part. Its payload
// lives in the blob store under Key.
type Attachment struct {
	ID          string  `json:"id"`
	Filename    string  `json:"filename"`
	ContentType string  `json:"contentType"`
	Size        *int64  `json:"size"`
	Key         string  `json:"key"`
	Inline      bool    `json:"inline"`
	ContentID   *string `json:"contentId"`
}

// Page is one page of a reverse-chronological listing. NextCursor is empty
// when no further pages remain.
type Page struct {
	Messages   []*MessageRecord
	NextCursor string
}
