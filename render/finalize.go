package render

import (
	"context"
	"io"

	"github.com/wudi/boletopdf/stamper"
)

// finalize seals the filled form and writes the finished document to w.
// Callers still defer Close for the early return.
func finalize(ctx context.Context, s *stamper.Stamper, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Bind().Finalize(ctx, w)
}
