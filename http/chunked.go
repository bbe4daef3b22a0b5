package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var (
	errMalformed = errors.New("http: malformed request")
	errTooLarge  = errors.New("http: request too large")
)

// readLine returns the next CRLF terminated line without its terminator. The
// line must fit in limit bytes. The returned slice is only valid until the
// next read on br.
func readLine(br *bufio.Reader, limit int) ([]byte, error) {
	line, err := br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, errTooLarge
	}
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	n := len(line)
	if n < 2 || line[n-2] != '\r' {
		return nil, errMalformed
	}
	if n-2 > limit {
		return nil, errTooLarge
	}
	return line[:n-2], nil
}

// readChunked decodes a chunked body. available is the number of request bytes
// still allowed; chunk size lines and terminators count against it.
func readChunked(br *bufio.Reader, available int64) ([]byte, error) {
	var body bytes.Buffer

	for {
		line, err := readLine(br, maxChunkSizeLineSize)
		if err != nil {
			if err == errTooLarge {
				return nil, errMalformed
			}
			return nil, err
		}
		available -= int64(len(line)) + 2

		if i := bytes.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		size, err := parseHex(bytes.TrimSpace(line))
		if err != nil {
			return nil, errMalformed
		}

		if size == 0 {
			end, err := readLine(br, 0)
			if err != nil {
				if err == errTooLarge {
					return nil, errMalformed
				}
				return nil, err
			}
			if len(end) != 0 {
				return nil, errMalformed
			}
			return body.Bytes(), nil
		}

		if size > available {
			return nil, errTooLarge
		}
		if _, err := io.CopyN(&body, br, size); err != nil {
			if err == io.EOF {
				return nil, errMalformed
			}
			return nil, err
		}
		available -= size

		if err := expectCRLF(br); err != nil {
			return nil, err
		}
		available -= 2
	}
}

func expectCRLF(br *bufio.Reader) error {
	var buf [2]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errMalformed
		}
		return err
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return errMalformed
	}
	return nil
}
