package bgzf

import (
	"bufio"
	"io"
)

// Lines returns a bufio.Scanner over the Reader's inflated byte stream,
// splitting on newlines the way bufio.ScanLines does. This is the
// "external buffered-line adapter" the core reader delegates line
// iteration to, rather than reimplementing line scanning against its own
// internal buffer: the core reader's job is producing an ordinary
// sequential io.Reader, and bufio already does line splitting well.
func (r *Reader) Lines() *bufio.Scanner {
	return bufio.NewScanner(r)
}

// WriteTo implements io.WriterTo by streaming inflated bytes to w,
// reusing the Reader's own inflate buffer views without an intermediate
// copy.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		view, err := r.Next(len(r.inflateBuf))
		if err != nil {
			return total, err
		}
		if len(view) == 0 {
			return total, nil
		}
		n, werr := w.Write(view)
		total += int64(n)
		if werr != nil {
			return total, werr
		}
	}
}
