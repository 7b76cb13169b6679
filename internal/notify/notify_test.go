package notify

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier_NeverLogsToken(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := n.Send(context.Background(), Message{To: "ana@example.com", Purpose: PurposePasswordReset, Token: "secret-token"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "password_reset")
	assert.Contains(t, out, "a***@example.com")
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "ana@example.com")
}

// fakeRelay speaks just enough SMTP for net/smtp and reports each DATA payload.
func fakeRelay(t *testing.T) (string, int, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	bodies := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
		reply("220 localhost ESMTP")

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250-localhost")
				reply("250 8BITMIME")
			case cmd == "DATA":
				reply("354 go ahead")
				var body strings.Builder
				for {
					dataLine, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if dataLine == ".\r\n" {
						break
					}
					body.WriteString(dataLine)
				}
				bodies <- body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, bodies
}

// silentRelay accepts connections but never sends a greeting.
func silentRelay(t *testing.T) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestSMTPNotifier_Send(t *testing.T) {
	t.Parallel()

	host, port, bodies := fakeRelay(t)
	n := NewSMTPNotifier(SMTPConfig{Host: host, Port: port, From: "noreply@byd90.app", Timeout: 5 * time.Second})

	err := n.Send(context.Background(), Message{To: "ana@example.com", Purpose: PurposeEmailVerification, Token: "tok"})
	require.NoError(t, err)

	body := <-bodies
	assert.Contains(t, body, "From: noreply@byd90.app\r\n")
	assert.Contains(t, body, "To: ana@example.com\r\n")
	assert.Contains(t, body, "Subject: Verify your BYD90 email")
	assert.Contains(t, body, "\r\n\r\nUse this token to verify your email address:\r\n\r\ntok\r\n")
}

func TestSMTPNotifier_StalledRelay(t *testing.T) {
	t.Parallel()

	t.Run("context deadline", func(t *testing.T) {
		t.Parallel()

		host, port := silentRelay(t)
		n := NewSMTPNotifier(SMTPConfig{Host: host, Port: port, From: "noreply@byd90.app", Timeout: time.Minute})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := n.Send(ctx, Message{To: "ana@example.com", Purpose: PurposePasswordReset, Token: "tok"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("configured timeout", func(t *testing.T) {
		t.Parallel()

		host, port := silentRelay(t)
		n := NewSMTPNotifier(SMTPConfig{Host: host, Port: port, From: "noreply@byd90.app", Timeout: 200 * time.Millisecond})

		start := time.Now()
		err := n.Send(context.Background(), Message{To: "ana@example.com", Purpose: PurposePasswordReset, Token: "tok"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestSMTPNotifier_Errors(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	n := NewSMTPNotifier(SMTPConfig{Host: addr.IP.String(), Port: addr.Port, From: "noreply@byd90.app", Timeout: time.Second})
	err = n.Send(context.Background(), Message{To: "ana@example.com", Purpose: PurposePasswordReset, Token: "tok"})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, n.Send(ctx, Message{To: "ana@example.com"}), context.Canceled)
}

// gatedNotifier blocks every delivery until release is closed.
type gatedNotifier struct {
	started chan Message
	release chan struct{}

	mu        sync.Mutex
	delivered []Message
}

func newGatedNotifier() *gatedNotifier {
	return &gatedNotifier{started: make(chan Message, 10), release: make(chan struct{})}
}

func (n *gatedNotifier) Send(ctx context.Context, msg Message) error {
	n.started <- msg
	select {
	case <-n.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	n.mu.Lock()
	n.delivered = append(n.delivered, msg)
	n.mu.Unlock()
	return nil
}

func (n *gatedNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

func TestQueue(t *testing.T) {
	t.Parallel()

	t.Run("send does not wait for delivery", func(t *testing.T) {
		t.Parallel()

		next := newGatedNotifier()
		q := NewQueue(next, 4, time.Minute, nil)

		start := time.Now()
		require.NoError(t, q.Send(context.Background(), Message{To: "ana@example.com", Token: "a"}))
		require.NoError(t, q.Send(context.Background(), Message{To: "ana@example.com", Token: "b"}))
		assert.Less(t, time.Since(start), 100*time.Millisecond)

		<-next.started
		assert.Zero(t, next.count())

		close(next.release)
		q.Close()
		assert.Equal(t, 2, next.count())
	})

	t.Run("full queue drops", func(t *testing.T) {
		t.Parallel()

		next := newGatedNotifier()
		q := NewQueue(next, 1, time.Minute, nil)

		require.NoError(t, q.Send(context.Background(), Message{Token: "in flight"}))
		<-next.started
		require.NoError(t, q.Send(context.Background(), Message{Token: "buffered"}))
		require.ErrorIs(t, q.Send(context.Background(), Message{Token: "dropped"}), ErrQueueFull)

		close(next.release)
		q.Close()
		assert.Equal(t, 2, next.count())
	})

	t.Run("delivery is bounded by the timeout", func(t *testing.T) {
		t.Parallel()

		var buf syncBuffer
		next := newGatedNotifier()
		q := NewQueue(next, 1, 50*time.Millisecond, slog.New(slog.NewJSONHandler(&buf, nil)))

		require.NoError(t, q.Send(context.Background(), Message{To: "ana@example.com", Purpose: PurposePasswordReset, Token: "secret-token"}))
		q.Close()

		assert.Zero(t, next.count())
		assert.Contains(t, buf.String(), "notification delivery failed")
		assert.NotContains(t, buf.String(), "secret-token")
	})

	t.Run("closed queue rejects", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(NewLogNotifier(slog.New(slog.NewJSONHandler(io.Discard, nil))), 1, time.Second, nil)
		q.Close()
		q.Close()
		require.ErrorIs(t, q.Send(context.Background(), Message{}), ErrQueueClosed)
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", maskEmail("ana@example.com"))
	assert.Equal(t, "***", maskEmail("invalid"))
	assert.Equal(t, "***", maskEmail("@example.com"))
}
