package notifier

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Envelope holds the addressing of one message
type Envelope struct {
	From    string
	To      string
	ReplyTo string
	Date    time.Time
}

// Attachment is a file attached to a notification
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BuildMIME assembles a multipart/alternative message, wrapped in
// multipart/mixed when attachments are present.
func BuildMIME(env Envelope, msg *Message, attachments []Attachment) ([]byte, error) {
	var h mail.Header
	h.SetDate(env.Date)
	h.SetSubject(msg.Subject)
	if env.From != "" {
		h.SetAddressList("From", []*mail.Address{{Address: env.From}})
	}
	h.SetAddressList("To", []*mail.Address{{Address: env.To}})
	if env.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: env.ReplyTo}})
	}
	h.Set("X-Automation", "purchase-order-notifier")

	var buf bytes.Buffer
	if len(attachments) == 0 {
		iw, err := mail.CreateInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message: %w", err)
		}
		if err := writeAlternatives(iw, msg); err != nil {
			return nil, err
		}
		if err := iw.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish message: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}
	if err := writeAlternatives(iw, msg); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish inline part: %w", err)
	}

	for _, a := range attachments {
		var ah mail.AttachmentHeader
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.SetContentType(contentType, nil)
		ah.SetFilename(a.Filename)
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment %q: %w", a.Filename, err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, fmt.Errorf("failed to write attachment %q: %w", a.Filename, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish attachment %q: %w", a.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAlternatives(iw *mail.InlineWriter, msg *Message) error {
	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		var th mail.InlineHeader
		th.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		w, err := iw.CreatePart(th)
		if err != nil {
			return fmt.Errorf("failed to create %s part: %w", p.contentType, err)
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			return fmt.Errorf("failed to write %s part: %w", p.contentType, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("failed to finish %s part: %w", p.contentType, err)
		}
	}
	return nil
}
