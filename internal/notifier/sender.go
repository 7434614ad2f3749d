package notifier

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/sheet"
	"po-notifier-go/internal/validator"
)

// ErrNoSender is returned when no valid sender address can be found
var ErrNoSender = errors.New("no valid sender email available")

var senderKeys = []string{"SENDER_EMAIL", "FROM_EMAIL", "EMAIL_FROM"}

// ConfigValue returns the first valid address stored next to one of keys in
// the first rows of the key/value configuration sheet.
func ConfigValue(ctx context.Context, wb sheet.Workbook, sheetName string, rows int, keys ...string) (string, error) {
	ok, err := sheet.Exists(ctx, wb, sheetName)
	if err != nil || !ok {
		return "", err
	}
	values, err := wb.Read(ctx, sheetName, 1, rows)
	if err != nil {
		return "", err
	}
	for _, r := range values {
		key := strings.ToUpper(strings.TrimSpace(sheet.Cell(r, 1)))
		value := strings.TrimSpace(sheet.Cell(r, 2))
		for _, k := range keys {
			if key == k && validator.IsValidEmail(value, 254) {
				return value, nil
			}
		}
	}
	return "", nil
}

// Senders resolves From and Reply-To addresses
type Senders struct {
	cfg         config.EmailConfig
	wb          sheet.Workbook
	configSheet string
	mailbox     AddressSource
}

// NewSenders creates a resolver. mailbox may be nil when no authenticated
// address is available.
func NewSenders(cfg config.EmailConfig, wb sheet.Workbook, configSheet string, mailbox AddressSource) *Senders {
	return &Senders{cfg: cfg, wb: wb, configSheet: configSheet, mailbox: mailbox}
}

func (s *Senders) auto(ctx context.Context) string {
	if s.mailbox == nil {
		return ""
	}
	addr, err := s.mailbox.Address(ctx)
	if err != nil {
		logrus.Warnf("Could not get current user email: %v", err)
		return ""
	}
	return addr
}

// From returns the sender address following the configured strategy, then
// the fallback list, then the authenticated mailbox.
func (s *Senders) From(ctx context.Context) (string, error) {
	var sender string
	switch strings.ToLower(s.cfg.Sender) {
	case "auto", "":
		sender = s.auto(ctx)
	case "config":
		v, err := ConfigValue(ctx, s.wb, s.configSheet, 20, senderKeys...)
		if err != nil {
			logrus.Warnf("Failed to read sender from %s sheet: %v", s.configSheet, err)
		}
		sender = v
	default:
		sender = s.cfg.Sender
	}
	if validator.IsValidEmail(sender, 254) {
		return sender, nil
	}

	logrus.Warnf("Could not determine sender with strategy %q, trying fallbacks", s.cfg.Sender)
	for _, f := range s.cfg.FallbackSenders {
		if validator.IsValidEmail(f, 254) {
			return f, nil
		}
	}
	if addr := s.auto(ctx); validator.IsValidEmail(addr, 254) {
		return addr, nil
	}
	return "", ErrNoSender
}

// ReplyTo returns the configured reply address, or "" for none
func (s *Senders) ReplyTo(ctx context.Context) string {
	if validator.IsValidEmail(s.cfg.ReplyTo, 254) {
		return s.cfg.ReplyTo
	}
	v, err := ConfigValue(ctx, s.wb, s.configSheet, 10, "REPLY_TO")
	if err != nil {
		logrus.Warnf("Failed to read reply-to from %s sheet: %v", s.configSheet, err)
	}
	return v
}
