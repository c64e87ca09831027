package push

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/walletd-io/walletd/internal/util"
)

const (
	apnsTokenSize      = 32
	defaultDialTimeout = 5 * time.Second
	defaultPushTimeout = 5 * time.Second
)

// APNSClient delivers pass update notifications over the legacy APNs binary
// interface: a client-certificate authenticated TLS connection carrying one
// fixed-format frame per notification.
type APNSClient struct {
	GatewayAddr  string
	Certificates []tls.Certificate
	DialTimeout  time.Duration
	PushTimeout  time.Duration
}

func NewAPNSClient(gatewayAddr string, cert tls.Certificate) *APNSClient {
	return &APNSClient{
		GatewayAddr:  gatewayAddr,
		Certificates: []tls.Certificate{cert},
		DialTimeout:  defaultDialTimeout,
		PushTimeout:  defaultPushTimeout,
	}
}

// LoadAPNSClient builds a client from the issuer signing certificate and
// key PEM files; the same certificate that signs archives authenticates the
// push connection.
func LoadAPNSClient(gatewayAddr, certPath, keyPath string) (*APNSClient, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading push certificate: %w", err)
	}
	return NewAPNSClient(gatewayAddr, cert), nil
}

func (c *APNSClient) Push(ctx context.Context, passTypeID, token string) error {
	// Pass update pushes carry an empty payload; the device reacts by
	// polling the web service for changed serial numbers.
	frame, err := legacyFrame(token, []byte("{}"))
	if err != nil {
		return err
	}

	dialer := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.DialTimeout},
		Config: &tls.Config{
			Certificates: c.Certificates,
			MinVersion:   tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", c.GatewayAddr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.GatewayAddr, err)
	}
	defer util.IgnoreError(conn.Close)

	if err := conn.SetWriteDeadline(time.Now().Add(c.PushTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("writing push frame: %w", err)
	}
	return nil
}

// legacyFrame packs the original APNs binary notification format: a zero
// control byte, the big endian token length (always 32), the raw device
// token, the big endian payload length, then the JSON payload bytes.
func legacyFrame(token string, payload []byte) ([]byte, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("push token is not hex: %w", err)
	}
	if len(raw) != apnsTokenSize {
		return nil, fmt.Errorf("push token must be %d bytes, got %d", apnsTokenSize, len(raw))
	}

	var buf bytes.Buffer
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(raw)))
	buf.Write(raw)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(payload)))
	buf.Write(payload)
	return buf.Bytes(), nil
}
