package static

import (
	"io"

	"github.com/freekieb7/ember/http"
	"github.com/google/uuid"
)

// source is a file payload that parts can be cut from: cached bytes or an
// open file.
type source struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer
}

func (s source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type readCloser struct {
	io.Reader
	io.Closer
}

// section returns the bytes of r as a body owning the source.
func (s source) section(contentType string, r ByteRange) http.Body {
	reader := io.NewSectionReader(s.r, r.Start, r.Length())
	if s.closer == nil {
		return http.ReaderBody(contentType, reader, r.Length())
	}
	return http.ReaderBody(contentType, readCloser{Reader: reader, Closer: s.closer}, r.Length())
}

// multipartBody is a multipart/byteranges body.
type multipartBody struct {
	boundary    string
	contentType string
	src         source
	ranges      []ByteRange
}

func newMultipartBody(contentType string, src source, ranges []ByteRange) *multipartBody {
	return &multipartBody{
		boundary:    uuid.NewString(),
		contentType: contentType,
		src:         src,
		ranges:      ranges,
	}
}

func (b *multipartBody) Boundary() string {
	return b.boundary
}

func (b *multipartBody) ContentType() string {
	return "multipart/byteranges; boundary=" + b.boundary
}

func (b *multipartBody) partHeader(r ByteRange) string {
	return "--" + b.boundary + "\r\n" +
		http.HeaderContentType + ": " + b.contentType + "\r\n" +
		http.HeaderContentRange + ": " + r.ContentRange(b.src.size) + "\r\n\r\n"
}

func (b *multipartBody) closing() string {
	return "--" + b.boundary + "--\r\n"
}

func (b *multipartBody) ContentLength() int64 {
	var n int64
	for _, r := range b.ranges {
		n += int64(len(b.partHeader(r))) + r.Length() + 2
	}
	return n + int64(len(b.closing()))
}

func (b *multipartBody) WriteBody(w http.BodyWriter) error {
	defer b.src.Close()

	for _, r := range b.ranges {
		if _, err := io.WriteString(w, b.partHeader(r)); err != nil {
			return err
		}
		if _, err := io.Copy(w, io.NewSectionReader(b.src.r, r.Start, r.Length())); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, b.closing())
	return err
}
