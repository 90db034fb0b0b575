package ports

import (
	"context"

	"varexplorer/domain/variant"
)

// ProgressFunc is called after each identifier has been processed
type ProgressFunc func(done, total int, id variant.RsID)

// VariantSource defines the remote genomics service used by analyses
type VariantSource interface {
	// RegionVariants lists the variants overlapping a region
	RegionVariants(ctx context.Context, region variant.Region) ([]variant.Variant, error)

	// Annotate fetches annotations one identifier at a time, skipping failures
	Annotate(ctx context.Context, ids []variant.RsID, progress ProgressFunc) (*variant.AnnotationBatch, error)

	// AnnotateOne fetches a single annotation
	AnnotateOne(ctx context.Context, id variant.RsID) (*variant.Annotation, error)
}
