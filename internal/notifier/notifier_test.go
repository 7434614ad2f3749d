package notifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

type fakeTransport struct {
	sent [][]byte
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, raw []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, raw)
	return nil
}

type fakeMailbox struct {
	addr string
	err  error
}

func (f fakeMailbox) Address(ctx context.Context) (string, error) {
	return f.addr, f.err
}

type fakeFetcher struct {
	att *Attachment
	err error
}

func (f fakeFetcher) Fetch(ctx context.Context, ref string) (*Attachment, error) {
	return f.att, f.err
}

func branding() config.BrandingConfig {
	b := config.Default().Branding
	b.GitHub = config.GitHubConfig{Username: "acme", Repository: "po-assets", Branch: "main"}
	return b
}

func newComposer(t *testing.T) *Composer {
	cfg := config.Default().Email
	cfg.TimeZone = "UTC"
	c, err := NewComposer(cfg)
	require.NoError(t, err)
	return c
}

func TestGitHubImageURL(t *testing.T) {
	gh := config.GitHubConfig{Username: "acme", Repository: "po-assets"}
	assert.Equal(t, "https://raw.githubusercontent.com/acme/po-assets/main/assets/logo.png", GitHubImageURL(gh, "logo.png"))
	assert.Equal(t, "", GitHubImageURL(config.GitHubConfig{}, "logo.png"))
}

func TestSelectLogos(t *testing.T) {
	b := branding()
	r := model.RowRecord{Email: "a@b.com", Description: "Widgets"}

	logos := SelectLogos(r, b)
	require.Len(t, logos, 1)
	assert.Equal(t, "Company Logo", logos[0].AltText)

	b.Strategy = config.LogoSecondary
	assert.Equal(t, "Partner Logo", SelectLogos(r, b)[0].AltText)

	b.Strategy = config.LogoBoth
	assert.Len(t, SelectLogos(r, b), 2)

	b.Strategy = config.LogoConditional
	assert.Equal(t, "Company Logo", SelectLogos(r, b)[0].AltText)
	r.Email = "student@state.edu"
	assert.Equal(t, "Partner Logo", SelectLogos(r, b)[0].AltText)

	b.Primary.URL = "https://cdn.example.com/p.png"
	b.Strategy = config.LogoPrimary
	assert.Equal(t, "https://cdn.example.com/p.png", SelectLogos(r, b)[0].URL)

	assert.Empty(t, SelectLogos(r, config.Default().Branding))
}

func TestComposeEscapesFields(t *testing.T) {
	c := newComposer(t)
	r := model.RowRecord{Email: "a@b.com", Name: "Ann", PO: "PO-100", Description: `<script>alert("x")</script> & bolts`}
	now := time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)

	msg, err := c.Compose(r, branding(), now)
	require.NoError(t, err)

	assert.Equal(t, "Your order has been placed", msg.Subject)
	assert.Contains(t, msg.HTML, "Hello Ann,")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.HTML, "raw.githubusercontent.com/acme/po-assets/main/assets/logo.png")
	assert.Contains(t, msg.HTML, "Mar 1, 2024 3:04 PM UTC")

	assert.Contains(t, msg.Text, "PO Number: PO-100")
	assert.Contains(t, msg.Text, "Description: <script>")
	assert.Contains(t, msg.Text, "https://github.com/acme/po-assets")
}

func TestComposeWithoutOptionalFields(t *testing.T) {
	c := newComposer(t)
	msg, err := c.Compose(model.RowRecord{Email: "a@b.com"}, config.Default().Branding, time.Now())
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hello,")
	assert.NotContains(t, msg.Text, "PO Number")
	assert.NotContains(t, msg.HTML, "<img")
}

func TestNewComposerBadZone(t *testing.T) {
	cfg := config.Default().Email
	cfg.TimeZone = "Mars/Olympus"
	_, err := NewComposer(cfg)
	assert.Error(t, err)
}

func readParts(t *testing.T, raw []byte) (*mail.Reader, map[string]string, []string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	inline := map[string]string{}
	var files []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			inline[ct] = string(body)
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			files = append(files, name)
		}
	}
	return mr, inline, files
}

func TestBuildMIME(t *testing.T) {
	msg := &Message{Subject: "Your order", HTML: "<p>hi</p>", Text: "hi"}
	env := Envelope{From: "buyer@acme.com", To: "a@b.com", ReplyTo: "help@acme.com", Date: time.Now()}

	raw, err := BuildMIME(env, msg, nil)
	require.NoError(t, err)

	mr, inline, files := readParts(t, raw)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Your order", subject)
	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "a@b.com", to[0].Address)
	replyTo, err := mr.Header.AddressList("Reply-To")
	require.NoError(t, err)
	assert.Equal(t, "help@acme.com", replyTo[0].Address)
	ct, _, _ := mr.Header.ContentType()
	assert.Equal(t, "multipart/alternative", ct)

	assert.Equal(t, "hi", inline["text/plain"])
	assert.Equal(t, "<p>hi</p>", inline["text/html"])
	assert.Empty(t, files)

	raw, err = BuildMIME(env, msg, []Attachment{{Filename: "quote.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}})
	require.NoError(t, err)
	mr, inline, files = readParts(t, raw)
	ct, _, _ = mr.Header.ContentType()
	assert.Equal(t, "multipart/mixed", ct)
	assert.Equal(t, "hi", inline["text/plain"])
	assert.Equal(t, []string{"quote.pdf"}, files)
}

func TestExtractFileID(t *testing.T) {
	assert.Equal(t, "1AbCdEfGhIjK", ExtractFileID("https://drive.google.com/file/d/1AbCdEfGhIjK/view?usp=sharing"))
	assert.Equal(t, "1AbCdEfGhIjK", ExtractFileID("https://drive.google.com/open?id=1AbCdEfGhIjK"))
	assert.Equal(t, "1AbCdEfGhIjK", ExtractFileID(" 1AbCdEfGhIjK "))
	assert.Equal(t, "", ExtractFileID("quote.pdf"))
	assert.Equal(t, "", ExtractFileID("short"))
}

func TestSendersFrom(t *testing.T) {
	ctx := context.Background()
	wb := sheet.NewMemory().AddSheet("Config",
		[]string{"Setting", "Value"},
		[]string{"sender_email", "orders@acme.com"},
		[]string{"REPLY_TO", "help@acme.com"},
	)
	cfg := config.Default().Email

	from, err := NewSenders(cfg, wb, "Config", fakeMailbox{addr: "me@acme.com"}).From(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me@acme.com", from)

	cfg.Sender = "config"
	from, err = NewSenders(cfg, wb, "Config", nil).From(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders@acme.com", from)

	cfg.Sender = "explicit@acme.com"
	from, err = NewSenders(cfg, wb, "Config", nil).From(ctx)
	require.NoError(t, err)
	assert.Equal(t, "explicit@acme.com", from)

	cfg.Sender = "config"
	cfg.FallbackSenders = []string{"bad", "fallback@acme.com"}
	from, err = NewSenders(cfg, sheet.NewMemory(), "Config", nil).From(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fallback@acme.com", from)

	cfg.FallbackSenders = nil
	from, err = NewSenders(cfg, sheet.NewMemory(), "Config", fakeMailbox{addr: "me@acme.com"}).From(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me@acme.com", from)

	_, err = NewSenders(cfg, sheet.NewMemory(), "Config", fakeMailbox{err: errors.New("offline")}).From(ctx)
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestSendersReplyTo(t *testing.T) {
	ctx := context.Background()
	wb := sheet.NewMemory().AddSheet("Config", []string{"REPLY_TO", "help@acme.com"})
	cfg := config.Default().Email

	assert.Equal(t, "help@acme.com", NewSenders(cfg, wb, "Config", nil).ReplyTo(ctx))

	cfg.ReplyTo = "desk@acme.com"
	assert.Equal(t, "desk@acme.com", NewSenders(cfg, wb, "Config", nil).ReplyTo(ctx))

	assert.Equal(t, "", NewSenders(config.Default().Email, sheet.NewMemory(), "Config", nil).ReplyTo(ctx))
}

func newNotifier(t *testing.T, transport Transport, fetcher AttachmentFetcher) *Notifier {
	cfg := config.Default().Email
	cfg.Sender = "orders@acme.com"
	cfg.AttachQuote = true
	return New(cfg, newComposer(t), transport, fetcher, NewSenders(cfg, sheet.NewMemory(), "Config", nil))
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	transport := &fakeTransport{}
	fetcher := fakeFetcher{att: &Attachment{Filename: "q.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}}
	n := newNotifier(t, transport, fetcher)

	r := model.RowRecord{Row: 2, Email: "a@b.com", PO: "PO-100", Description: "Widgets", Quote: "https://drive.google.com/file/d/1AbCdEfGhIjK/view"}
	require.NoError(t, n.Notify(ctx, r, branding(), time.Now()))
	require.Len(t, transport.sent, 1)

	mr, _, files := readParts(t, transport.sent[0])
	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	assert.Equal(t, "orders@acme.com", from[0].Address)
	assert.Equal(t, []string{"q.pdf"}, files)
}

func TestNotifyAttachmentFailureStillSends(t *testing.T) {
	transport := &fakeTransport{}
	n := newNotifier(t, transport, fakeFetcher{err: ErrAttachmentTooLarge})

	r := model.RowRecord{Row: 2, Email: "a@b.com", Quote: "1AbCdEfGhIjK"}
	require.NoError(t, n.Notify(context.Background(), r, branding(), time.Now()))
	require.Len(t, transport.sent, 1)
	assert.False(t, strings.Contains(string(transport.sent[0]), "multipart/mixed"))
}

func TestNotifyWrapsTransportErrors(t *testing.T) {
	n := newNotifier(t, &fakeTransport{err: errors.New("smtp down")}, nil)

	err := n.Notify(context.Background(), model.RowRecord{Email: "a@b.com"}, branding(), time.Now())
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Contains(t, err.Error(), "smtp down")
}
