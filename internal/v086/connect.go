package v086

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Connect messages precede v086 login. They are plain NUL-terminated ASCII
// exchanged on the server's public port.
const (
	helloPrefix = "HELLO"
	helloD00D   = "HELLOD00D"
	pingText    = "PING"
	pongText    = "PONG"
	tooText     = "TOO"
)

// ProtocolVersion is the only protocol clients may request.
const ProtocolVersion = "0.83"

type ConnectKind int

const (
	ConnectHello ConnectKind = iota + 1
	ConnectPing
)

type ConnectMessage struct {
	Kind     ConnectKind
	Protocol string
}

// IsConnectMessage reports whether b looks like a connect message rather
// than a bundle. Bundle counts never exceed 32, and ASCII letters are above it.
func IsConnectMessage(b []byte) bool {
	return len(b) > 0 && b[0] > MaxBundleMessages
}

func ParseConnect(b []byte) (ConnectMessage, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return ConnectMessage{}, fmt.Errorf("%w: connect message not terminated", ErrMessageFormat)
	}
	s := string(b[:i])
	switch {
	case s == pingText:
		return ConnectMessage{Kind: ConnectPing}, nil
	case strings.HasPrefix(s, helloD00D):
		return ConnectMessage{}, fmt.Errorf("%w: unexpected %q", ErrMessageFormat, s)
	case strings.HasPrefix(s, helloPrefix):
		return ConnectMessage{Kind: ConnectHello, Protocol: strings.TrimPrefix(s, helloPrefix)}, nil
	}
	return ConnectMessage{}, fmt.Errorf("%w: connect message %q", ErrMessageFormat, s)
}

func terminated(s string) []byte { return append([]byte(s), 0) }

func HelloD00D(port int) []byte { return terminated(helloD00D + strconv.Itoa(port)) }

func Pong() []byte { return terminated(pongText) }

func TooManyUsers() []byte { return terminated(tooText) }

func Hello(protocol string) []byte { return terminated(helloPrefix + protocol) }

func Ping() []byte { return terminated(pingText) }

// ParseHelloD00D returns the port a server assigned in its HELLOD00D reply.
func ParseHelloD00D(b []byte) (int, error) {
	s := string(bytes.TrimRight(b, "\x00"))
	if s == tooText {
		return 0, fmt.Errorf("%w: server full", ErrMessageFormat)
	}
	if !strings.HasPrefix(s, helloD00D) {
		return 0, fmt.Errorf("%w: reply %q", ErrMessageFormat, s)
	}
	port, err := strconv.Atoi(strings.TrimPrefix(s, helloD00D))
	if err != nil {
		return 0, fmt.Errorf("%w: port: %v", ErrMessageFormat, err)
	}
	return port, nil
}
