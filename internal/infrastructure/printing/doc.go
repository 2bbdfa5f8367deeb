// Package printing turns assembled invoice views into documents on disk.
//
// This package contains:
// - TemplateEngine, which binds an InvoiceView to the embedded html/template layouts
// - PDFRenderer and its ChromedpRenderer implementation (headless Chrome via DevTools)
// - InvoiceRenderer, the application-facing renderer that writes a finished file atomically
// - FileSystemStorage, the artifact directory with retention cleanup
//
// Example usage:
//
//	pdf, err := NewChromedpRenderer(ChromedpConfig{NoSandbox: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pdf.Close()
//
//	renderer := NewInvoiceRenderer(NewTemplateEngine(), pdf, &InvoiceRendererConfig{PaperSize: PaperSizeA4})
//	if err := renderer.Render(ctx, view, storage.PathFor("INV-20260314-0001_20260314_103000_000.pdf")); err != nil {
//	    log.Fatal(err)
//	}
package printing
