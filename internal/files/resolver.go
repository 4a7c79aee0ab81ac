package files

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

const defaultDownloadName = "note.pdf"

// Download is the resolved locator for a note's file: either a redirect
// to an external URL or a byte stream from the blob subsystem.
type Download struct {
	RedirectURL string
	Body        io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}

// IsRedirect reports whether the caller should redirect rather than stream.
func (d Download) IsRedirect() bool {
	return d.RedirectURL != ""
}

// ResolverConfig describes the resolver dependencies.
type ResolverConfig struct {
	Blobs BlobStore
}

// Resolver turns a note's reference into a Download.
type Resolver struct {
	blobs BlobStore
}

// NewResolver constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Blobs == nil {
		return nil, errors.New("files: blob store required")
	}
	return &Resolver{blobs: cfg.Blobs}, nil
}

// Resolve applies the priority order: external URL first (authoritative,
// returned directly), then the internal blob. The returned stream reads
// under ctx, so a disconnecting client cancels the transfer.
func (r *Resolver) Resolve(ctx context.Context, note *storage.Note) (Download, error) {
	reference, err := ReferenceOf(note)
	if err != nil {
		return Download{}, err
	}

	switch ref := reference.(type) {
	case ExternalRef:
		return Download{RedirectURL: ref.URL}, nil
	case BlobRef:
		body, info, err := r.blobs.Get(ctx, ref.ID)
		if err != nil {
			if errors.Is(err, ErrBlobNotFound) {
				return Download{}, FaultFileNotFound
			}
			return Download{}, fault.Unavailable(err)
		}
		contentType := info.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		return Download{
			Body:        body,
			ContentType: contentType,
			Filename:    SanitizeFilename(info.Filename),
			Size:        info.Size,
		}, nil
	default:
		return Download{}, FaultNoFileAssociated
	}
}

// SanitizeFilename strips path components and characters that would
// break or smuggle through a Content-Disposition header.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case r == '"', r == ';':
			return '_'
		default:
			return r
		}
	}, name)
	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned == "/" {
		return defaultDownloadName
	}
	return cleaned
}
