// Package mailbox reads bank notification emails over IMAP and pulls the
// transaction reference and transferred amount out of them.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

const (
	DefaultHost    = "imap.gmail.com"
	DefaultPort    = 993
	DefaultMailbox = "INBOX"
)

var (
	ErrNotConfigured = errors.New("mailbox: IMAP credentials not configured")
	// ErrSessionClosed means the connection is gone; no further command on
	// the session can succeed.
	ErrSessionClosed = errors.New("mailbox: session closed")
	ErrMessageGone   = errors.New("mailbox: message no longer in mailbox")
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Mailbox  string
	// InsecureSkipVerify accepts self-signed server certificates.
	InsecureSkipVerify bool
}

func (c Config) Configured() bool {
	return c.User != "" && c.Password != ""
}

func (c Config) addr() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Message is one fetched email. Raw holds the full RFC 5322 message.
type Message struct {
	SeqNum  uint32
	From    string
	Subject string
	Raw     []byte
}

// Session is a logged-in IMAP connection. Every call blocks until the server
// answers or ctx is done; in the latter case the connection is torn down and
// later calls fail with ErrSessionClosed.
type Session struct {
	c       *client.Client
	mailbox string
	closed  atomic.Bool
}

// Dial opens a TLS connection and logs in.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	tlsCfg := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = DefaultHost
	}
	dialer := &tls.Dialer{Config: tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, fmt.Errorf("mailbox: dial %s: %w", cfg.addr(), err)
	}

	c, err := runWithConn(ctx, conn, func() (*client.Client, error) { return client.New(conn) })
	if err != nil {
		return nil, fmt.Errorf("mailbox: greeting: %w", err)
	}

	name := cfg.Mailbox
	if name == "" {
		name = DefaultMailbox
	}
	s := &Session{c: c, mailbox: name}

	if err := s.do(ctx, func() error { return c.Login(cfg.User, cfg.Password) }); err != nil {
		_ = c.Terminate()
		return nil, fmt.Errorf("mailbox: login: %w", err)
	}
	return s, nil
}

// Open selects the mailbox read-write so fetched messages get \Seen.
func (s *Session) Open(ctx context.Context) error {
	return s.do(ctx, func() error {
		_, err := s.c.Select(s.mailbox, false)
		return err
	})
}

func (s *Session) SearchUnread(ctx context.Context) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	var ids []uint32
	err := s.do(ctx, func() error {
		var err error
		ids, err = s.c.Search(criteria)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Fetch downloads the full body of one message. BODY[] is fetched without
// PEEK, so the server marks the message as read.
func (s *Session) Fetch(ctx context.Context, seqNum uint32) (Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNum)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	var (
		out   Message
		found bool
	)
	err := s.do(ctx, func() error {
		ch := make(chan *imap.Message, 1)
		done := make(chan error, 1)
		go func() { done <- s.c.Fetch(seqset, items, ch) }()

		for msg := range ch {
			if !found && msg.SeqNum == seqNum {
				out, found = toMessage(msg, section), true
			}
		}
		return <-done
	})
	if err != nil {
		return Message{}, fmt.Errorf("mailbox: fetch %d: %w", seqNum, err)
	}
	if !found {
		return Message{}, fmt.Errorf("%w: %d", ErrMessageGone, seqNum)
	}
	return out, nil
}

// Close logs out, falling back to dropping the connection.
func (s *Session) Close() error {
	if s == nil || s.c == nil {
		return nil
	}
	if s.gone() {
		_ = s.c.Terminate()
		return nil
	}
	if err := s.c.Logout(); err != nil {
		return s.c.Terminate()
	}
	return nil
}

func (s *Session) gone() bool {
	if s.closed.Load() {
		return true
	}
	select {
	case <-s.c.LoggedOut():
		return true
	default:
		return false
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	if s.gone() {
		return ErrSessionClosed
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil && s.gone() {
			return fmt.Errorf("%w: %w", ErrSessionClosed, err)
		}
		return err
	case <-ctx.Done():
		s.closed.Store(true)
		_ = s.c.Terminate()
		return fmt.Errorf("%w: %w", ErrSessionClosed, ctx.Err())
	}
}

func runWithConn[T any](ctx context.Context, conn net.Conn, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			_ = conn.Close()
		}
		return r.v, r.err
	case <-ctx.Done():
		_ = conn.Close()
		var zero T
		return zero, ctx.Err()
	}
}

// toMessage leaves Raw nil when the body could not be read; the caller
// treats that message as unparseable without failing the whole fetch.
func toMessage(msg *imap.Message, section *imap.BodySectionName) Message {
	m := Message{SeqNum: msg.SeqNum}
	if env := msg.Envelope; env != nil {
		m.Subject = env.Subject
		if len(env.From) > 0 && env.From[0] != nil {
			m.From = env.From[0].Address()
		}
	}

	if body := msg.GetBody(section); body != nil {
		if raw, err := io.ReadAll(body); err == nil {
			m.Raw = raw
		}
	}
	return m
}
