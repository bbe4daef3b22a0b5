package http

import (
	"bytes"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

var (
	ErrNoCertificate   = errors.New("http: no certificate")
	ErrUnknownProtocol = errors.New("http: unknown TLS protocol")
	ErrUnknownCipher   = errors.New("http: unknown cipher suite")
)

const (
	ProtocolTLS12 = "TLSv1.2"
	ProtocolTLS13 = "TLSv1.3"
)

var tlsVersions = map[string]uint16{
	ProtocolTLS12: tls.VersionTLS12,
	ProtocolTLS13: tls.VersionTLS13,
}

// CertificateBlob is a certificate in memory, either PEM (certificate chain
// and private key, or the chain with the key in Key) or PKCS#12.
type CertificateBlob struct {
	Data     []byte
	Key      []byte
	Password string
}

type HttpsConfig struct {
	Certificate CertificateBlob
	// Hostnames holds certificates selected by SNI hostname.
	Hostnames map[string]CertificateBlob
	HTTP2     bool
	// Protocols defaults to TLSv1.2 and TLSv1.3.
	Protocols []string
	// CipherSuites applies to TLSv1.2 and defaults to the ECDHE AEAD suites.
	CipherSuites []string
}

// Https holds the TLS contexts of the secure listener: a primary one and
// one per configured hostname.
type Https struct {
	primary   *tls.Config
	hosts     map[string]*tls.Config
	http2     bool
	protocols []string
	ciphers   []string
}

var defaultCipherSuites = []string{
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
}

func NewHttps(cfg HttpsConfig) (*Https, error) {
	protocols := cfg.Protocols
	if len(protocols) == 0 {
		protocols = []string{ProtocolTLS12, ProtocolTLS13}
	}
	ciphers := cfg.CipherSuites
	if len(ciphers) == 0 {
		ciphers = defaultCipherSuites
	}

	h := &Https{
		hosts:     make(map[string]*tls.Config, len(cfg.Hostnames)),
		http2:     cfg.HTTP2,
		protocols: slices.Clone(protocols),
		ciphers:   slices.Clone(ciphers),
	}

	base, err := h.baseConfig()
	if err != nil {
		return nil, err
	}

	cert, err := LoadCertificate(cfg.Certificate)
	if err != nil {
		return nil, err
	}
	h.primary = base.Clone()
	h.primary.Certificates = []tls.Certificate{cert}

	for hostname, blob := range cfg.Hostnames {
		cert, err := LoadCertificate(blob)
		if err != nil {
			return nil, fmt.Errorf("http: certificate for %s: %w", hostname, err)
		}
		hostCfg := base.Clone()
		hostCfg.Certificates = []tls.Certificate{cert}
		h.hosts[strings.ToLower(hostname)] = hostCfg
	}

	return h, nil
}

func (h *Https) baseConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	for _, p := range h.protocols {
		version, ok := tlsVersions[p]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
		}
		if cfg.MinVersion == 0 || version < cfg.MinVersion {
			cfg.MinVersion = version
		}
		if version > cfg.MaxVersion {
			cfg.MaxVersion = version
		}
	}

	for _, name := range h.ciphers {
		id, ok := cipherSuiteID(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCipher, name)
		}
		cfg.CipherSuites = append(cfg.CipherSuites, id)
	}

	if h.http2 {
		cfg.NextProtos = []string{"h2", "http/1.1"}
	} else {
		cfg.NextProtos = []string{"http/1.1"}
	}
	return cfg, nil
}

// ConfigFor returns the context for hostname, or the primary one when no
// override matches.
func (h *Https) ConfigFor(hostname string) *tls.Config {
	if hostname != "" {
		if cfg, ok := h.hosts[strings.ToLower(hostname)]; ok {
			return cfg
		}
	}
	return h.primary
}

func (h *Https) HTTP2() bool {
	return h.http2
}

func (h *Https) AllowedProtocols() []string {
	return slices.Clone(h.protocols)
}

func (h *Https) AllowedCipherSuites() []string {
	return slices.Clone(h.ciphers)
}

func cipherSuiteID(name string) (uint16, bool) {
	for _, suite := range tls.CipherSuites() {
		if suite.Name == name {
			return suite.ID, true
		}
	}
	for _, suite := range tls.InsecureCipherSuites() {
		if suite.Name == name {
			return suite.ID, true
		}
	}
	return 0, false
}

// LoadCertificate decodes a PEM or PKCS#12 certificate blob.
func LoadCertificate(blob CertificateBlob) (tls.Certificate, error) {
	if len(blob.Data) == 0 {
		return tls.Certificate{}, ErrNoCertificate
	}

	if bytes.Contains(blob.Data, []byte("-----BEGIN")) {
		key := blob.Key
		if len(key) == 0 {
			key = blob.Data
		}
		return tls.X509KeyPair(blob.Data, key)
	}

	blocks, err := pkcs12.ToPEM(blob.Data, blob.Password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("http: decoding pkcs12: %w", err)
	}

	var certPEM, keyPEM []byte
	for _, block := range blocks {
		encoded := pem.EncodeToMemory(block)
		if block.Type == "CERTIFICATE" {
			certPEM = append(certPEM, encoded...)
		} else {
			keyPEM = append(keyPEM, encoded...)
		}
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}
