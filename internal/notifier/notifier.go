// Package notifier renders order confirmations and hands them to the mail
// transport.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
)

// Notifier composes and sends one confirmation per call
type Notifier struct {
	composer    *Composer
	transport   Transport
	fetcher     AttachmentFetcher
	senders     *Senders
	attachQuote bool
}

// New creates a notifier. fetcher may be nil to disable attachments.
func New(cfg config.EmailConfig, composer *Composer, transport Transport, fetcher AttachmentFetcher, senders *Senders) *Notifier {
	return &Notifier{
		composer:    composer,
		transport:   transport,
		fetcher:     fetcher,
		senders:     senders,
		attachQuote: cfg.AttachQuote,
	}
}

// Notify sends the confirmation for r. Attachment problems are logged and
// never stop the send. Transport failures are returned as *SendError.
func (n *Notifier) Notify(ctx context.Context, r model.RowRecord, b config.BrandingConfig, now time.Time) error {
	msg, err := n.composer.Compose(r, b, now)
	if err != nil {
		return err
	}

	from, err := n.senders.From(ctx)
	if err != nil {
		return &SendError{Err: err}
	}

	var attachments []Attachment
	if n.attachQuote && n.fetcher != nil && r.Quote != "" {
		att, err := n.fetcher.Fetch(ctx, r.Quote)
		if err != nil {
			logrus.WithField("row", r.Row).Warnf("Attachment skipped: %v", err)
		} else {
			logrus.WithField("row", r.Row).Infof("Attaching %s (%.2fMB)", att.Filename, float64(len(att.Data))/(1024*1024))
			attachments = append(attachments, *att)
		}
	}

	raw, err := BuildMIME(Envelope{
		From:    from,
		To:      r.Email,
		ReplyTo: n.senders.ReplyTo(ctx),
		Date:    now,
	}, msg, attachments)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	if err := n.transport.Send(ctx, raw); err != nil {
		var sendErr *SendError
		if errors.As(err, &sendErr) {
			return err
		}
		return &SendError{Err: err}
	}
	return nil
}
