package transport

import (
	"bytes"
	"fmt"
)

// Serial links carry one JSON document per line.
const maxLineLen = 64 * 1024

func encodeLine(payload []byte) ([]byte, error) {
	if bytes.ContainsAny(payload, "\r\n") {
		return nil, fmt.Errorf("payload contains a line break")
	}
	if len(payload) > maxLineLen {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	line := make([]byte, len(payload)+1)
	copy(line, payload)
	line[len(payload)] = '\n'

	return line, nil
}

// lineFramer reassembles newline-terminated frames from arbitrary chunks.
type lineFramer struct {
	buf     []byte
	discard bool
}

// feed appends chunk and returns every complete, non-empty line. Lines longer
// than maxLineLen are dropped up to the next newline.
func (f *lineFramer) feed(chunk []byte) [][]byte {
	var out [][]byte
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			f.append(chunk)
			break
		}
		f.append(chunk[:i])
		chunk = chunk[i+1:]

		if f.discard {
			f.discard = false
			f.buf = f.buf[:0]
			continue
		}
		line := bytes.TrimSpace(f.buf)
		if len(line) > 0 {
			out = append(out, append([]byte(nil), line...))
		}
		f.buf = f.buf[:0]
	}

	return out
}

func (f *lineFramer) append(b []byte) {
	if f.discard {
		return
	}
	if len(f.buf)+len(b) > maxLineLen {
		f.discard = true
		f.buf = f.buf[:0]

		return
	}
	f.buf = append(f.buf, b...)
}
