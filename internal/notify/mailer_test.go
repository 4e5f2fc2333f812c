package notify

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSMTP answers a minimal ESMTP conversation on a loopback listener and
// records what was sent.
type fakeSMTP struct {
	lis net.Listener

	mu   sync.Mutex
	from string
	rcpt string
	data string
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{lis: lis}
	t.Cleanup(func() { lis.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) hostPort() (string, string) {
	host, port, _ := net.SplitHostPort(s.lis.Addr().String())
	return host, port
}

func (s *fakeSMTP) serve() {
	conn, err := s.lis.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	write := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	write("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			write("250-fake")
			write("250 OK")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.from = line[len("MAIL FROM:"):]
			s.mu.Unlock()
			write("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = line[len("RCPT TO:"):]
			s.mu.Unlock()
			write("250 OK")
		case cmd == "DATA":
			write("354 go ahead")
			var body strings.Builder
			for {
				dl, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(dl, "\r\n") == "." {
					break
				}
				body.WriteString(dl)
			}
			s.mu.Lock()
			s.data = body.String()
			s.mu.Unlock()
			write("250 queued")
		case cmd == "QUIT":
			write("221 bye")
			return
		default:
			write("250 OK")
		}
	}
}

func (s *fakeSMTP) message() (string, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.from, s.rcpt, s.data
}

func TestSMTPMailerSend(t *testing.T) {
	srv := newFakeSMTP(t)
	host, port := srv.hostPort()

	m := NewSMTPMailer(host, port, "", "", "pagos@example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.Send(ctx, Message{
		To:       "rosa@example.com",
		Subject:  "Confirmación de pago R-1",
		HTMLBody: "<p>Recibo: R-1</p>",
	})
	require.NoError(t, err)

	from, rcpt, data := srv.message()
	require.Contains(t, from, "pagos@example.com")
	require.Contains(t, rcpt, "rosa@example.com")
	require.Contains(t, data, "Subject: Confirmación de pago R-1")
	require.Contains(t, data, "<p>Recibo: R-1</p>")
}

func TestSMTPMailerSendCanceledContext(t *testing.T) {
	srv := newFakeSMTP(t)
	host, port := srv.hostPort()

	m := NewSMTPMailer(host, port, "", "", "pagos@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{To: "rosa@example.com", Subject: "x", HTMLBody: "y"})
	require.Error(t, err, "a dead context must not start a send")

	_, rcpt, _ := srv.message()
	require.Empty(t, rcpt)
}
