// Package files resolves a note's stored file reference to retrievable
// bytes. Notes from different deployment eras carry either an internal
// blob id or an external URL; both stay downloadable without a schema
// migration.
package files

import (
	"strings"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

var (
	// FaultNoFileAssociated signals a note with neither reference shape.
	FaultNoFileAssociated = fault.NotFound("NoFileAssociated", "note has no file attached")
	// FaultFileNotFound signals a reference whose content no longer exists.
	FaultFileNotFound = fault.NotFound("FileNotFound", "file content not found")
)

// Reference is the tagged union of the two file reference shapes.
type Reference interface {
	isReference()
}

// BlobRef points at bytes held in the internally managed blob store.
type BlobRef struct {
	ID string
}

func (BlobRef) isReference() {}

// ExternalRef points at bytes held by a third-party storage service.
// It is authoritative: no existence probe is made before redirecting.
type ExternalRef struct {
	URL string
}

func (ExternalRef) isReference() {}

// ReferenceOf extracts the note's reference, preferring the external
// URL when both coexist (migration-era rows).
func ReferenceOf(note *storage.Note) (Reference, error) {
	if url := strings.TrimSpace(note.ExternalURL); url != "" {
		return ExternalRef{URL: url}, nil
	}
	if id := strings.TrimSpace(note.BlobID); id != "" {
		return BlobRef{ID: id}, nil
	}
	return nil, FaultNoFileAssociated
}
