package invoice

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoice"
)

// InvoiceRenderer writes the document for view to path. A failed render
// must not leave a partial file at path.
type InvoiceRenderer interface {
	Render(ctx context.Context, view *invoice.InvoiceView, path string) error
}

// ArtifactStore knows where invoice documents live
type ArtifactStore interface {
	// PathFor returns the full path for a document file name
	PathFor(name string) string

	// Exists reports whether a readable document is at path
	Exists(ctx context.Context, path string) bool

	// Remove deletes the document at path; a missing file is not an error
	Remove(ctx context.Context, path string) error
}

// ArtifactOpener hands a finished document to whatever displays or prints it
type ArtifactOpener interface {
	Open(ctx context.Context, path string, mode OpenMode) error
}

// ArtifactArchiver copies a finished document to long-term storage
type ArtifactArchiver interface {
	Archive(ctx context.Context, path string) error
}
