package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ErrAttachmentTooLarge is returned for files over the size limit
var ErrAttachmentTooLarge = errors.New("attachment too large")

// AttachmentFetcher resolves a document reference found in a row
type AttachmentFetcher interface {
	Fetch(ctx context.Context, ref string) (*Attachment, error)
}

var (
	drivePathID  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]{10,})`)
	driveQueryID = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]{10,})`)
	driveBareID  = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
)

// ExtractFileID finds a Drive file id in a sharing URL or bare id
func ExtractFileID(ref string) string {
	if m := drivePathID.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	if m := driveQueryID.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	if ref = strings.TrimSpace(ref); driveBareID.MatchString(ref) {
		return ref
	}
	return ""
}

// Drive fetches quote documents from Google Drive
type Drive struct {
	service  *drive.Service
	maxBytes int64
}

var _ AttachmentFetcher = (*Drive)(nil)

// NewDrive creates a Drive fetcher refusing files over maxBytes
func NewDrive(ctx context.Context, maxBytes int64, opts ...option.ClientOption) (*Drive, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Drive{service: service, maxBytes: maxBytes}, nil
}

// Fetch downloads the referenced file. Google-native documents are
// exported as PDF.
func (d *Drive) Fetch(ctx context.Context, ref string) (*Attachment, error) {
	id := ExtractFileID(ref)
	if id == "" {
		return nil, fmt.Errorf("no Drive file id in %q", ref)
	}

	file, err := d.service.Files.Get(id).Fields("id", "name", "mimeType", "size").
		SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get Drive file %s: %w", id, err)
	}
	if d.maxBytes > 0 && file.Size > d.maxBytes {
		return nil, fmt.Errorf("%w: %s is %.2fMB", ErrAttachmentTooLarge, file.Name, float64(file.Size)/(1024*1024))
	}

	var resp *http.Response
	contentType := file.MimeType
	name := file.Name
	if strings.HasPrefix(file.MimeType, "application/vnd.google-apps.") {
		contentType = "application/pdf"
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			name += ".pdf"
		}
		resp, err = d.service.Files.Export(id, contentType).Context(ctx).Download()
	} else {
		resp, err = d.service.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download Drive file %s: %w", id, err)
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Drive file %s: %w", id, err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrAttachmentTooLarge, name, d.maxBytes)
	}

	if name == "" {
		name = "attachment.pdf"
	}
	return &Attachment{Filename: name, ContentType: contentType, Data: data}, nil
}
