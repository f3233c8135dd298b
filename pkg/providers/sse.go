package providers

import (
	"bufio"
	"bytes"
	"io"
)

// sseDone is the sentinel payload OpenAI-compatible APIs send last.
const sseDone = "[DONE]"

// SSEDecoder decodes a server-sent event stream incrementally. Bytes are
// consumed as they arrive; a line split across reads is buffered until its
// terminator shows up.
type SSEDecoder struct {
	r *bufio.Reader
}

// NewSSEDecoder creates a decoder reading from r.
func NewSSEDecoder(r io.Reader) *SSEDecoder {
	return &SSEDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event's data payload. Multiple data lines of one
// event are joined with "\n". Comment lines and fields other than data are
// skipped. It returns io.EOF at the end of the body or after a [DONE]
// payload. A read error other than io.EOF discards the partial event.
func (d *SSEDecoder) Next() ([]byte, error) {
	var dataLines [][]byte
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			line = bytes.TrimRight(line, "\r\n")
			if len(line) > 0 {
				dataLines = appendDataLine(dataLines, line)
			}
			if len(dataLines) > 0 {
				return finishEvent(dataLines)
			}
			return nil, io.EOF
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(dataLines) == 0 {
				continue
			}
			return finishEvent(dataLines)
		}

		// Comment line.
		if line[0] == ':' {
			continue
		}
		dataLines = appendDataLine(dataLines, line)
	}
}

func finishEvent(dataLines [][]byte) ([]byte, error) {
	data := bytes.Join(dataLines, []byte("\n"))
	if string(bytes.TrimSpace(data)) == sseDone {
		return nil, io.EOF
	}
	return data, nil
}

func appendDataLine(dst [][]byte, line []byte) [][]byte {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return dst
	}
	val := line[len("data:"):]
	if len(val) > 0 && val[0] == ' ' {
		val = val[1:]
	}
	return append(dst, append([]byte(nil), val...))
}
