package render

import "fmt"

// RenderError is returned when a slip cannot be built: the template failed
// to open, a field write failed, an image could not be placed, or
// finalization or merging failed.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RenderError{Op: op, Err: err}
}
