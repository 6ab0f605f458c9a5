// Package ingest turns a raw inbound email stream into a finalized
// MessageRecord: the stream is tee'd into concurrent raw persistence and
// bounded parsing, attachment payloads are persisted, and the record is
// forwarded to the owning mailbox in the background.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yuimarudev/mox/internal/blob"
	"github.com/yuimarudev/mox/internal/mailbox"
	"github.com/yuimarudev/mox/internal/parser"
)

// Pipeline builds message records from raw email streams.
type Pipeline struct {
	blobs         blob.Store
	maxParseBytes int64
	logger        *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a pipeline persisting into blobs. maxParseBytes caps
// how much of the stream is buffered for MIME parsing.
func NewPipeline(blobs blob.Store, maxParseBytes int64, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		blobs:         blobs,
		maxParseBytes: maxParseBytes,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Deliver persists the raw message verbatim, parses it within the byte
// budget, persists any attachment payloads, and returns the finalized
// record. Raw persistence must succeed; parsing is best-effort and degrades
// to an empty body so no message is lost to a malformed MIME structure.
func (p *Pipeline) Deliver(ctx context.Context, to, from string, raw io.Reader) (*mailbox.MessageRecord, error) {
	box := LocalPart(to)
	id := p.newID()
	receivedAt := p.now().UTC().Format(mailbox.TimeFormat)
	day := receivedAt[:10]
	rawKey := fmt.Sprintf("raw/%s/%s/%s.eml", box, day, id)

	rawPR, rawPW := io.Pipe()
	parsePR, parsePW := io.Pipe()
	go fanOut(raw, rawPW, parsePW)

	var (
		parseBytes []byte
		truncated  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer rawPR.Close()
		err := p.blobs.Put(gctx, rawKey, rawPR, blob.PutOptions{
			ContentType: "message/rfc822",
			Metadata: map[string]string{
				"to":         to,
				"from":       from,
				"receivedAt": receivedAt,
			},
		})
		if err != nil {
			return fmt.Errorf("persist raw: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer parsePR.Close()
		b, t, err := ReadUpTo(parsePR, p.maxParseBytes)
		if err != nil {
			// a broken source also fails the raw branch; here it only
			// degrades the body
			p.logger.Warn("bounded read failed", "mailbox", box, "id", id, "error", err)
			return nil
		}
		parseBytes, truncated = b, t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subject := ""
	headers := map[string]string{}
	body := mailbox.Body{}
	attachments := []mailbox.Attachment{}

	if !truncated && parseBytes != nil {
		email, atts, err := p.parseAndStore(ctx, box, day, id, parseBytes)
		if err != nil {
			p.logger.Warn("mime parse failed, storing empty body",
				"mailbox", box, "id", id, "error", err)
		} else {
			subject = email.Subject
			headers = email.Headers
			if email.Text != "" {
				body.Text = &email.Text
			}
			if email.HTML != "" {
				body.HTML = &email.HTML
			}
			attachments = atts
		}
	}

	return &mailbox.MessageRecord{
		ID:          id,
		ReceivedAt:  receivedAt,
		Mailbox:     box,
		To:          to,
		From:        from,
		Subject:     subject,
		Headers:     headers,
		Raw:         mailbox.RawRef{Key: rawKey},
		Parse:       mailbox.ParseInfo{Truncated: truncated, MaxBytes: p.maxParseBytes},
		Body:        body,
		Attachments: attachments,
	}, nil
}

// parseAndStore decodes the MIME structure and persists every attachment
// payload as an unordered concurrent batch, joined before returning.
func (p *Pipeline) parseAndStore(ctx context.Context, box, day, id string, data []byte) (*parser.Email, []mailbox.Attachment, error) {
	email, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	attachments := make([]mailbox.Attachment, len(email.Attachments))
	g, gctx := errgroup.WithContext(ctx)
	for i, part := range email.Attachments {
		g.Go(func() error {
			attID := p.newID()
			safeName := sanitizeFilename(part.Filename, i)
			key := fmt.Sprintf("att/%s/%s/%s/%s/%s", box, day, id, attID, safeName)

			contentType := part.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			err := p.blobs.Put(gctx, key, bytes.NewReader(part.Data), blob.PutOptions{
				ContentType:        contentType,
				ContentDisposition: blob.AttachmentDisposition(safeName),
				Metadata: map[string]string{
					"messageId":    id,
					"attachmentId": attID,
					"filename":     safeName,
					"contentType":  contentType,
				},
			})
			if err != nil {
				return fmt.Errorf("persist attachment %s: %w", safeName, err)
			}

			size := int64(len(part.Data))
			var contentID *string
			if part.ContentID != "" {
				cid := part.ContentID
				contentID = &cid
			}
			attachments[i] = mailbox.Attachment{
				ID:          attID,
				Filename:    safeName,
				ContentType: contentType,
				Size:        &size,
				Key:         key,
				Inline:      part.Inline,
				ContentID:   contentID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return email, attachments, nil
}

// LocalPart returns the lowercased local part of an email address, or the
// whole address when no @ is present.
func LocalPart(addr string) string {
	if at := strings.Index(addr, "@"); at >= 0 {
		addr = addr[:at]
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

// sanitizeFilename replaces path separators and substitutes a generated
// name when the part carried none.
func sanitizeFilename(name string, idx int) string {
	if name == "" {
		return fmt.Sprintf("attachment-%d", idx)
	}
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	return name
}

// fanOut copies src into both pipes. A consumer that closes its end early
// drops out without disturbing the other consumer.
func fanOut(src io.Reader, a, b *io.PipeWriter) {
	writers := [2]*io.PipeWriter{a, b}
	var dead [2]bool
	buf := make([]byte, readChunkSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			for i, w := range writers {
				if dead[i] {
					continue
				}
				if _, werr := w.Write(buf[:n]); werr != nil {
					dead[i] = true
				}
			}
		}
		if err != nil {
			for i, w := range writers {
				if dead[i] {
					continue
				}
				if err == io.EOF {
					w.Close()
				} else {
					w.CloseWithError(err)
				}
			}
			return
		}
		if dead[0] && dead[1] {
			return
		}
	}
}
