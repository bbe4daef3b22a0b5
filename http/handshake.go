package http

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"

	"golang.org/x/crypto/cryptobyte"
)

const (
	recordTypeHandshake     = 0x16
	handshakeTypeHello      = 0x01
	extensionServerName     = 0x0000
	extensionALPN           = 0x0010
	serverNameTypeHostName  = 0x00
	recordHeaderSize        = 5
	maxCiphertextRecordSize = 16384 + 2048
)

var errNoClientHello = errors.New("http: not a TLS ClientHello")

// Handshake is what the sniffer learned from the first TLS record of a
// connection. Bytes holds everything read so far and must be replayed into
// the TLS session.
type Handshake struct {
	Bytes        []byte
	Hostname     string
	HTTP2        bool
	CipherSuites []uint16
}

// ReadHandshake reads the first TLS record from r and extracts the SNI
// hostname and offered ALPN protocols. Input that is not a ClientHello is not
// an error: the returned Handshake then carries no hostname. Only read errors
// are returned.
func ReadHandshake(r io.Reader) (*Handshake, error) {
	h := &Handshake{}

	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		return h, err
	}
	h.Bytes = append(h.Bytes, header[0])
	if header[0] != recordTypeHandshake {
		return h, nil
	}

	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return h, err
	}
	h.Bytes = append(h.Bytes, header[1:]...)

	length := int(binary.BigEndian.Uint16(header[3:]))
	if length > maxCiphertextRecordSize {
		logger.Warn("handshake: record length exceeds maximum", "length", length)
		return h, nil
	}

	record := make([]byte, length)
	n, err := io.ReadFull(r, record)
	h.Bytes = append(h.Bytes, record[:n]...)
	if err != nil {
		return h, err
	}

	if err := h.parse(record); err != nil && !errors.Is(err, errNoClientHello) {
		logger.Warn("handshake: ignoring malformed ClientHello", "error", err)
	}
	return h, nil
}

// parse reads a ClientHello message from the body of a handshake record.
func (h *Handshake) parse(record []byte) error {
	s := cryptobyte.String(record)

	var msgType uint8
	if !s.ReadUint8(&msgType) || msgType != handshakeTypeHello {
		return errNoClientHello
	}

	var hello cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&hello) {
		return errors.New("handshake length exceeds record length")
	}

	var sessionID, ciphers, compression cryptobyte.String
	if !hello.Skip(2+32) ||
		!hello.ReadUint8LengthPrefixed(&sessionID) ||
		!hello.ReadUint16LengthPrefixed(&ciphers) ||
		!hello.ReadUint8LengthPrefixed(&compression) {
		return errors.New("truncated ClientHello")
	}

	suites := make([]uint16, 0, len(ciphers)/2)
	for !ciphers.Empty() {
		var suite uint16
		if !ciphers.ReadUint16(&suite) {
			return errors.New("odd cipher suite list")
		}
		suites = append(suites, suite)
	}

	if hello.Empty() {
		h.CipherSuites = suites
		return nil
	}

	var extensions cryptobyte.String
	if !hello.ReadUint16LengthPrefixed(&extensions) {
		return errors.New("truncated extensions")
	}

	var hostname string
	var http2 bool
	for !extensions.Empty() {
		var extType uint16
		var data cryptobyte.String
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&data) {
			return errors.New("truncated extension")
		}

		switch extType {
		case extensionServerName:
			var names cryptobyte.String
			if !data.ReadUint16LengthPrefixed(&names) {
				return errors.New("malformed server name extension")
			}
			for !names.Empty() && hostname == "" {
				var nameType uint8
				var name cryptobyte.String
				if !names.ReadUint8(&nameType) || !names.ReadUint16LengthPrefixed(&name) {
					return errors.New("malformed server name entry")
				}
				if nameType == serverNameTypeHostName {
					hostname = string(name)
				}
			}
		case extensionALPN:
			var protocols cryptobyte.String
			if !data.ReadUint16LengthPrefixed(&protocols) {
				return errors.New("malformed ALPN extension")
			}
			for !protocols.Empty() {
				var proto cryptobyte.String
				if !protocols.ReadUint8LengthPrefixed(&proto) {
					return errors.New("malformed ALPN entry")
				}
				if string(proto) == "h2" {
					http2 = true
				}
			}
		}
	}

	h.Hostname = hostname
	h.HTTP2 = http2
	h.CipherSuites = suites
	return nil
}

// replayConn serves the sniffed bytes before reading from the socket again.
type replayConn struct {
	net.Conn
	r io.Reader
}

// NewReplayConn returns a conn whose first reads return prefix.
func NewReplayConn(conn net.Conn, prefix []byte) net.Conn {
	if len(prefix) == 0 {
		return conn
	}
	return &replayConn{
		Conn: conn,
		r:    io.MultiReader(bytes.NewReader(prefix), conn),
	}
}

func (c *replayConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
