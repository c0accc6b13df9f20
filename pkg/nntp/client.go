package nntp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/nntp/yenc"
)

// ClientConfig carries everything needed to open one authenticated session.
type ClientConfig struct {
	Host          string
	Port          int
	TLS           bool
	TLSSkipVerify bool
	Username      string
	Password      string

	// DialTimeout bounds the TCP/TLS handshake. Default 10s.
	DialTimeout time.Duration

	// IOTimeout bounds each command round-trip. Default 30s.
	IOTimeout time.Duration
}

func (cfg *ClientConfig) withDefaults() ClientConfig {
	out := *cfg
	if out.Port == 0 {
		if out.TLS {
			out.Port = 563
		} else {
			out.Port = 119
		}
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = 10 * time.Second
	}
	if out.IOTimeout == 0 {
		out.IOTimeout = 30 * time.Second
	}
	return out
}

// Client is a Session over a real TCP or TLS connection. One conversation,
// one goroutine at a time.
type Client struct {
	cfg     ClientConfig
	conn    net.Conn
	text    *textproto.Conn
	group   string
	canPost bool
}

var _ Session = (*Client)(nil)

// Dial opens a connection, consumes the greeting and authenticates when
// credentials are configured.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	cfg = cfg.withDefaults()
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}

	var conn net.Conn
	var err error
	if cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         cfg.Host,
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: fmt.Sprintf("connect %s: %v", addr, err)}
	}

	c := &Client{
		cfg:  cfg,
		conn: conn,
		text: textproto.NewConn(conn),
	}

	if err := c.setDeadline(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	// Greeting: 200 posting allowed, 201 read-only.
	code, msg, err := c.text.ReadCodeLine(20)
	if err != nil {
		_ = conn.Close()
		if protoErr, ok := err.(*textproto.Error); ok {
			return nil, newError(protoErr.Code, protoErr.Msg)
		}
		return nil, &Error{Kind: KindTransient, Message: fmt.Sprintf("greeting: %v", err)}
	}
	c.canPost = code == 200
	logger.Debug("nntp session opened", logger.KeyHost, cfg.Host, logger.KeyNNTPCode, code, logger.KeyNNTPMessage, msg)

	if cfg.Username != "" {
		if err := c.authenticate(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return c, nil
}

// authenticate runs AUTHINFO USER / AUTHINFO PASS.
func (c *Client) authenticate(ctx context.Context) error {
	code, _, err := c.cmd(ctx, "AUTHINFO USER %s", c.cfg.Username)
	if err != nil {
		return err
	}

	if code == 381 {
		code, _, err = c.cmd(ctx, "AUTHINFO PASS %s", c.cfg.Password)
		if err != nil {
			return err
		}
	}

	switch code {
	case 281:
		return nil
	case 481, 482:
		return fmt.Errorf("%w (%d)", ErrAuthRejected, code)
	default:
		return &Error{Kind: KindAuth, Code: code, Message: "unexpected authinfo response"}
	}
}

// setDeadline applies the earlier of the context deadline and IOTimeout.
func (c *Client) setDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.cfg.IOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.conn.SetDeadline(deadline)
}

// cmd sends one command line and reads the status line.
func (c *Client) cmd(ctx context.Context, format string, args ...any) (int, string, error) {
	if err := c.setDeadline(ctx); err != nil {
		return 0, "", err
	}
	if err := c.text.PrintfLine(format, args...); err != nil {
		return 0, "", &Error{Kind: KindTransient, Message: fmt.Sprintf("write: %v", err)}
	}
	code, msg, err := c.text.ReadCodeLine(0)
	if err != nil {
		return 0, "", &Error{Kind: KindTransient, Message: fmt.Sprintf("read: %v", err)}
	}
	return code, msg, nil
}

// SelectGroup makes name the current group.
func (c *Client) SelectGroup(ctx context.Context, name string) error {
	code, msg, err := c.cmd(ctx, "GROUP %s", name)
	if err != nil {
		return err
	}
	if code != 211 {
		if code == 411 {
			return &Error{Kind: KindPermanent, Code: code, Message: "no such newsgroup " + name}
		}
		return newError(code, msg)
	}
	c.group = name
	return nil
}

// Post submits the article, armoring the body as yEnc on the wire.
func (c *Client) Post(ctx context.Context, a *Article) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !c.canPost {
		return fmt.Errorf("%w (server greeting 201)", ErrPostingNotAllowed)
	}

	code, msg, err := c.cmd(ctx, "POST")
	if err != nil {
		return err
	}
	if code != 340 {
		return newError(code, msg)
	}

	if err := c.setDeadline(ctx); err != nil {
		return err
	}

	w := c.text.DotWriter()
	if _, err := w.Write([]byte(a.headerBlock())); err != nil {
		_ = w.Close()
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("write headers: %v", err)}
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		_ = w.Close()
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("write separator: %v", err)}
	}
	if _, err := w.Write(yenc.Encode(a.Subject, a.Body)); err != nil {
		_ = w.Close()
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("write body: %v", err)}
	}
	if err := w.Close(); err != nil {
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("finish post: %v", err)}
	}

	code, msg, err = c.text.ReadCodeLine(0)
	if err != nil {
		return &Error{Kind: KindTransient, Message: fmt.Sprintf("post response: %v", err)}
	}
	if code != 240 {
		return newError(code, msg)
	}
	return nil
}

// Article fetches and decodes a full article by Message-ID.
func (c *Client) Article(ctx context.Context, messageID string) (*Article, error) {
	code, msg, err := c.cmd(ctx, "ARTICLE %s", messageID)
	if err != nil {
		return nil, err
	}
	if code != 220 {
		return nil, newError(code, msg)
	}

	if err := c.setDeadline(ctx); err != nil {
		return nil, err
	}
	raw, err := c.text.ReadDotBytes()
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: fmt.Sprintf("read article: %v", err)}
	}

	headRaw, bodyRaw := splitArticle(raw)
	header := parseHeaderBlock(splitLines(headRaw))

	_, body, err := yenc.Decode(bodyRaw)
	if err != nil {
		return nil, err
	}

	article := &Article{
		MessageID: header["Message-ID"],
		Subject:   header["Subject"],
		From:      header["From"],
		Body:      body,
	}
	if groups := header["Newsgroups"]; groups != "" {
		for _, g := range strings.Split(groups, ",") {
			article.Newsgroups = append(article.Newsgroups, strings.TrimSpace(g))
		}
	}
	return article, nil
}

// Head fetches only the headers of an article.
func (c *Client) Head(ctx context.Context, messageID string) (Header, error) {
	code, msg, err := c.cmd(ctx, "HEAD %s", messageID)
	if err != nil {
		return nil, err
	}
	if code != 221 {
		return nil, newError(code, msg)
	}

	if err := c.setDeadline(ctx); err != nil {
		return nil, err
	}
	raw, err := c.text.ReadDotBytes()
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: fmt.Sprintf("read head: %v", err)}
	}
	return parseHeaderBlock(splitLines(raw)), nil
}

// Stat checks article existence without transferring it.
func (c *Client) Stat(ctx context.Context, messageID string) error {
	code, msg, err := c.cmd(ctx, "STAT %s", messageID)
	if err != nil {
		return err
	}
	if code != 223 {
		return newError(code, msg)
	}
	return nil
}

// Ping probes the session with DATE.
func (c *Client) Ping(ctx context.Context) error {
	code, msg, err := c.cmd(ctx, "DATE")
	if err != nil {
		return err
	}
	if code != 111 {
		return newError(code, msg)
	}
	return nil
}

// Quit sends QUIT best-effort and closes the transport.
func (c *Client) Quit() error {
	_ = c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	_ = c.text.PrintfLine("QUIT")
	_, _, _ = c.text.ReadCodeLine(0)
	return c.conn.Close()
}

// splitArticle cuts a raw ARTICLE payload at the first blank line.
func splitArticle(raw []byte) (head, body []byte) {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx != -1 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx != -1 {
		return raw[:idx], raw[idx+2:]
	}
	return raw, nil
}
