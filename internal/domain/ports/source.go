package ports

import (
	"context"

	"visionstream/internal/domain"
)

// Source is an open video input yielding decoded frames. ReadFrame returns
// io.EOF when a finite source is exhausted. Close always stops the underlying
// decoder, even mid-read.
type Source interface {
	Info() domain.StreamInfo
	ReadFrame(ctx context.Context) (domain.Frame, error)
	Close() error
}

// SourceOpener resolves a URL or path into an open Source. Open either
// returns a fully usable source or an error, never a half-open one.
type SourceOpener interface {
	Open(ctx context.Context, sourceType domain.SourceType, path string) (Source, error)
}
