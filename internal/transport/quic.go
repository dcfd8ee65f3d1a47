// Package transport carries length-prefixed chunks over a single QUIC stream
// per connection. Certificates are self-signed and never verified; peers are
// on a trusted LAN or behind a relay they chose.
package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/SWAI-Ltd/multipass/internal/proto"
)

// Lobbies sit idle between rounds.
var defaultQuicConfig = &quic.Config{
	MaxIdleTimeout:  5 * time.Minute,
	KeepAlivePeriod: 15 * time.Second,
}

const (
	AddrAny = ":0"
	ProtoID = "multipass/1"
)

// Conn is one QUIC connection and its stream. Writes are serialized.
type Conn struct {
	stream quic.Stream
	conn   quic.Connection

	wmu       sync.Mutex
	closeOnce sync.Once
}

func newConn(stream quic.Stream, conn quic.Connection) *Conn {
	return &Conn{stream: stream, conn: conn}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	if c.conn != nil {
		return c.conn.RemoteAddr().String()
	}
	return "unknown"
}

// SendBytes writes one chunk.
func (c *Conn) SendBytes(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return proto.WriteChunk(c.stream, b)
}

// RecvBytes reads one chunk. Only one goroutine may read.
func (c *Conn) RecvBytes() ([]byte, error) {
	return proto.ReadChunk(c.stream)
}

// SendFrame encodes and sends a frame.
func (c *Conn) SendFrame(f *proto.Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return f.Encode(c.stream)
}

// RecvFrame reads and decodes a frame.
func (c *Conn) RecvFrame(f *proto.Frame) error {
	return f.Decode(c.stream)
}

// Close tears down the stream and the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.stream.Close()
		if c.conn != nil {
			_ = c.conn.CloseWithError(0, "")
		}
	})
	return err
}

// selfSignedTLS creates a throwaway self-signed cert.
func selfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "multipass"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{ProtoID},
	}, nil
}

// Server accepts QUIC connections and hands each one's first stream to
// handler on its own goroutine.
type Server struct {
	listener *quic.Listener
	handler  func(*Conn)
	cancel   context.CancelFunc
}

// Listen starts a server on addr. The server stops when ctx is done or Close
// is called.
func Listen(ctx context.Context, addr string, handler func(*Conn)) (*Server, error) {
	if handler == nil {
		return nil, errors.New("transport: nil handler")
	}
	tlsCfg, err := selfSignedTLS()
	if err != nil {
		return nil, err
	}
	listener, err := quic.ListenAddr(addr, tlsCfg, defaultQuicConfig)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Server{listener: listener, handler: handler, cancel: cancel}
	go s.acceptLoop(ctx)
	return s, nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		sess, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return
			}
			continue
		}
		go func() {
			stream, err := sess.AcceptStream(ctx)
			if err != nil {
				_ = sess.CloseWithError(0, "")
				return
			}
			s.handler(newConn(stream, sess))
		}()
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops accepting. Established connections are left to their handlers.
func (s *Server) Close() error {
	s.cancel()
	return s.listener.Close()
}

// Dial connects to a server. The stream only reaches the server once the
// first chunk is written.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ProtoID},
	}
	sess, err := quic.DialAddr(ctx, addr, tlsCfg, defaultQuicConfig)
	if err != nil {
		return nil, err
	}
	stream, err := sess.OpenStreamSync(ctx)
	if err != nil {
		_ = sess.CloseWithError(0, "")
		return nil, err
	}
	return newConn(stream, sess), nil
}
