package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// output writes command results in the configured format.
type output struct {
	format string    // format is "text" or "json"
	w      io.Writer // w is the result writer
}

// newOutput creates an output for opts writing to w.
func newOutput(opts *RootOptions, w io.Writer) *output {
	return &output{format: opts.Format, w: w}
}

// emit writes data as indented JSON, or calls text for the text format.
func (o *output) emit(data any, text func(w io.Writer)) error {
	if o.format == "json" {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")

		return enc.Encode(data)
	}

	text(o.w)

	return nil
}

// line writes one formatted text line.
func line(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
