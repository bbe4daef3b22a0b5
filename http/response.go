package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

var (
	ErrNoStatus = errors.New("http: response has no status line")
)

const (
	MediaTypeText  = "text/plain; charset=utf-8"
	MediaTypeHTML  = "text/html; charset=utf-8"
	MediaTypeJSON  = "application/json"
	MediaTypeOctet = "application/octet-stream"
)

// Body is a lazily written response body. ContentLength is -1 when the length
// is not known up front, as for event streams.
type Body interface {
	ContentType() string
	ContentLength() int64
	WriteBody(w BodyWriter) error
}

// BodyWriter is where a body writes itself. Flush pushes buffered bytes to
// the client.
type BodyWriter interface {
	io.Writer
	Flush() error
}

type bytesBody struct {
	contentType string
	data        []byte
}

// BytesBody returns a body holding data.
func BytesBody(contentType string, data []byte) Body {
	return &bytesBody{contentType: contentType, data: data}
}

func (b *bytesBody) ContentType() string  { return b.contentType }
func (b *bytesBody) ContentLength() int64 { return int64(len(b.data)) }

func (b *bytesBody) WriteBody(w BodyWriter) error {
	_, err := w.Write(b.data)
	return err
}

// Bytes exposes the payload of in-memory bodies.
func (b *bytesBody) Bytes() []byte {
	return b.data
}

type readerBody struct {
	contentType string
	reader      io.Reader
	length      int64
}

// ReaderBody returns a body that copies length bytes from r, or everything
// until EOF when length is -1. r is closed after writing when it is an io.Closer.
func ReaderBody(contentType string, r io.Reader, length int64) Body {
	return &readerBody{contentType: contentType, reader: r, length: length}
}

func (b *readerBody) ContentType() string  { return b.contentType }
func (b *readerBody) ContentLength() int64 { return b.length }

func (b *readerBody) WriteBody(w BodyWriter) error {
	if closer, ok := b.reader.(io.Closer); ok {
		defer closer.Close()
	}

	if b.length >= 0 {
		_, err := io.CopyN(w, b.reader, b.length)
		return err
	}

	buf := make([]byte, DefaultWriteBufferSize)
	for {
		n, err := b.reader.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := w.Flush(); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Response is an immutable response produced by a ResponseBuilder.
type Response struct {
	StatusLine
	Header Header
	Body   Body
}

func (res *Response) Successful() bool {
	return res.Code >= 200 && res.Code < 300
}

// closes reports whether the response asks for the connection to be closed.
func (res *Response) closes() bool {
	return containsToken(res.Header.Get(HeaderConnection), connectionClose)
}

// write serializes the response for HTTP/1.x. It reports whether the
// connection must be closed because the body length was not declared.
func (res *Response) write(bw *bufio.Writer, head bool) (bool, error) {
	var num [20]byte

	bw.WriteString(res.Protocol)
	bw.WriteByte(' ')
	bw.Write(num[:writeIntToBuffer(res.Code, num[:])])
	bw.WriteByte(' ')
	bw.WriteString(res.Message)
	bw.Write(crlf)

	for _, f := range res.Header.fields {
		bw.WriteString(f.Name)
		bw.Write(colonSpace)
		bw.WriteString(f.Value)
		bw.Write(crlf)
	}
	bw.Write(crlf)

	if err := bw.Flush(); err != nil {
		return true, err
	}

	if head || res.Body == nil {
		return false, nil
	}

	if err := res.Body.WriteBody(bw); err != nil {
		return true, err
	}
	if err := bw.Flush(); err != nil {
		return true, err
	}

	return res.Body.ContentLength() < 0, nil
}

// ResponseBuilder accumulates a response. Content-Length always follows the
// body set through WithNoBody or WithBody.
type ResponseBuilder struct {
	line   StatusLine
	header Header
	body   Body
}

func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{header: Header{fields: make([]Field, 0, 8)}}
}

// WithStatus sets the status line from the catalogue. Unknown codes keep an
// "Unknown Status Code" reason phrase.
func (b *ResponseBuilder) WithStatus(code int) *ResponseBuilder {
	line, ok := StatusLineFor(code)
	if !ok {
		line = StatusLine{Protocol: ProtocolHTTP11, Code: code, Message: unknownStatusCode}
	}
	b.line = line
	return b
}

func (b *ResponseBuilder) WithStatusLine(line StatusLine) *ResponseBuilder {
	b.line = line
	return b
}

func (b *ResponseBuilder) Status() int {
	return b.line.Code
}

// WithHeader replaces every value of name.
func (b *ResponseBuilder) WithHeader(name, value string) *ResponseBuilder {
	b.header.Set(name, value)
	return b
}

func (b *ResponseBuilder) AddHeader(name, value string) *ResponseBuilder {
	b.header.Add(name, value)
	return b
}

func (b *ResponseBuilder) RemoveHeader(name string) *ResponseBuilder {
	b.header.Del(name)
	return b
}

func (b *ResponseBuilder) HeaderValue(name string) string {
	return b.header.Get(name)
}

// WithETag sets the validator, or removes it when etag is empty.
func (b *ResponseBuilder) WithETag(etag string) *ResponseBuilder {
	if etag == "" {
		b.header.Del(HeaderETag)
		return b
	}
	b.header.Set(HeaderETag, etag)
	return b
}

// WithNoCache lets clients store the response but forces revalidation.
func (b *ResponseBuilder) WithNoCache(etag string) *ResponseBuilder {
	if etag != "" {
		b.header.Set(HeaderETag, etag)
	}
	b.header.Set(HeaderCacheControl, "no-cache")
	return b
}

func (b *ResponseBuilder) WithNoStore() *ResponseBuilder {
	b.header.Del(HeaderETag)
	b.header.Set(HeaderCacheControl, "no-store")
	return b
}

func (b *ResponseBuilder) WithMaxAge(seconds int64, immutable bool) *ResponseBuilder {
	value := "max-age=" + strconv.FormatInt(seconds, 10)
	if immutable {
		value += ", immutable"
	}
	b.header.Add(HeaderCacheControl, value)
	return b
}

func (b *ResponseBuilder) WithPrivate() *ResponseBuilder {
	b.header.Add(HeaderCacheControl, "private")
	return b
}

func (b *ResponseBuilder) WithLocation(location string) *ResponseBuilder {
	b.header.Set(HeaderLocation, location)
	return b
}

// WithHSTS asks browsers to only use https for a year.
func (b *ResponseBuilder) WithHSTS() *ResponseBuilder {
	b.header.Set(HeaderStrictTransport, "max-age=31536000")
	return b
}

func (b *ResponseBuilder) WithContentType(contentType string) *ResponseBuilder {
	b.header.Set(HeaderContentType, contentType)
	return b
}

func (b *ResponseBuilder) WithContentLength(length int64) *ResponseBuilder {
	b.header.Set(HeaderContentLength, strconv.FormatInt(length, 10))
	return b
}

func (b *ResponseBuilder) WithNoBody() *ResponseBuilder {
	b.body = nil
	return b.WithContentLength(0)
}

// WithBody sets the body along with its Content-Type and Content-Length.
// A body of unknown length drops Content-Length.
func (b *ResponseBuilder) WithBody(body Body) *ResponseBuilder {
	if body == nil {
		return b.WithNoBody()
	}

	b.body = body
	if contentType := body.ContentType(); contentType != "" {
		b.header.Set(HeaderContentType, contentType)
	}
	if length := body.ContentLength(); length >= 0 {
		b.WithContentLength(length)
	} else {
		b.header.Del(HeaderContentLength)
	}
	return b
}

func (b *ResponseBuilder) WithBytes(contentType string, data []byte) *ResponseBuilder {
	return b.WithBody(BytesBody(contentType, data))
}

func (b *ResponseBuilder) WithText(text string) *ResponseBuilder {
	return b.WithBody(BytesBody(MediaTypeText, []byte(text)))
}

func (b *ResponseBuilder) WithJson(payload any) *ResponseBuilder {
	if raw, ok := payload.(string); ok {
		return b.WithBody(BytesBody(MediaTypeJSON, []byte(raw)))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("response: encoding data to json failed", "error", err)
		return b.WithStatus(StatusInternalServerError).WithNoBody()
	}
	return b.WithBody(BytesBody(MediaTypeJSON, data))
}

// Build returns the response. The status line must have been set.
func (b *ResponseBuilder) Build() (*Response, error) {
	if b.line.Code <= 0 || b.line.Protocol == "" {
		return nil, ErrNoStatus
	}
	return &Response{
		StatusLine: b.line,
		Header:     b.header.Clone(),
		Body:       b.body,
	}, nil
}

// noBodyResponse is used by the engines for protocol level errors.
func noBodyResponse(line StatusLine, close bool) *Response {
	b := NewResponseBuilder().WithStatusLine(line).WithNoBody()
	if close {
		b.WithHeader(HeaderConnection, connectionClose)
	}
	res, _ := b.Build()
	return res
}
