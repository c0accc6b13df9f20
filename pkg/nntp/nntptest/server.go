// Package nntptest provides an in-process NNTP server for tests, in the
// spirit of httptest. The server speaks enough of the protocol for posting,
// retrieval and auth flows, stores decoded article bodies in memory and
// exposes knobs for failure injection.
package nntptest

import (
	"bytes"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nntpvault/nntpvault/pkg/nntp/yenc"
)

type storedArticle struct {
	messageID string
	subject   string
	headRaw   []byte
	body      []byte
}

// Server is a fake NNTP server listening on a real loopback socket.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	articles  map[string]*storedArticle
	postOrder []string
	username  string
	password  string
	readOnly  bool
	failPosts int
	accepted  int
	closed    bool
}

// NewServer starts a server on an ephemeral loopback port. Callers must
// Close it.
func NewServer() *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("nntptest: listen: %v", err))
	}
	s := &Server{
		ln:       ln,
		articles: make(map[string]*storedArticle),
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

// Close stops accepting and waits for in-flight connections to finish.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.ln.Close()
	s.wg.Wait()
}

// Addr returns host:port of the listening socket.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, portStr, _ := net.SplitHostPort(s.Addr())
	port, _ := strconv.Atoi(portStr)
	return port
}

// RequireAuth makes every restricted command demand AUTHINFO first.
func (s *Server) RequireAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// SetReadOnly makes the server greet with 201 and refuse POST with 440.
func (s *Server) SetReadOnly(readOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = readOnly
}

// FailPosts makes the next n article submissions fail with 441.
func (s *Server) FailPosts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPosts = n
}

// Drop forgets an article so later lookups answer 430.
func (s *Server) Drop(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, messageID)
}

// CorruptBody flips one byte of a stored body. The served article still
// carries valid armor, so the corruption surfaces at decryption.
func (s *Server) CorruptBody(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[messageID]
	if !ok || len(a.body) == 0 {
		return false
	}
	a.body[len(a.body)/2] ^= 0xFF
	return true
}

// Put seeds an article without going through POST.
func (s *Server) Put(messageID, subject string, body []byte) {
	head := fmt.Sprintf(
		"From: poster <poster@ngPost.com>\nNewsgroups: alt.binaries.test\nSubject: %s\nMessage-ID: %s\nDate: %s\nContent-Type: application/octet-stream",
		subject, messageID, time.Now().UTC().Format(time.RFC1123Z),
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[messageID] = &storedArticle{
		messageID: messageID,
		subject:   subject,
		headRaw:   []byte(head),
		body:      append([]byte(nil), body...),
	}
}

// Body returns a copy of the decoded body of a stored article.
func (s *Server) Body(messageID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[messageID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), a.body...), true
}

// Subject returns the Subject header of a stored article.
func (s *Server) Subject(messageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[messageID]
	if !ok {
		return "", false
	}
	return a.subject, true
}

// Headers returns the parsed header block of a stored article.
func (s *Server) Headers(messageID string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[messageID]
	if !ok {
		return nil, false
	}
	return parseHead(a.headRaw), true
}

// Posted returns message IDs in the order they were accepted.
func (s *Server) Posted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.postOrder...)
}

// PostCount returns the number of accepted submissions.
func (s *Server) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postOrder)
}

// ConnCount returns the number of connections accepted since start.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	text := textproto.NewConn(conn)

	s.mu.Lock()
	readOnly := s.readOnly
	needAuth := s.username != ""
	s.mu.Unlock()

	if readOnly {
		_ = text.PrintfLine("201 nntptest ready, posting prohibited")
	} else {
		_ = text.PrintfLine("200 nntptest ready, posting allowed")
	}

	authed := !needAuth
	var pendingUser string

	for {
		line, err := text.ReadLine()
		if err != nil {
			return
		}

		verb, rest, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {

		case "QUIT":
			_ = text.PrintfLine("205 bye")
			return

		case "MODE":
			if readOnly {
				_ = text.PrintfLine("201 posting prohibited")
			} else {
				_ = text.PrintfLine("200 posting allowed")
			}

		case "DATE":
			_ = text.PrintfLine("111 %s", time.Now().UTC().Format("20060102150405"))

		case "AUTHINFO":
			kind, value, _ := strings.Cut(rest, " ")
			switch strings.ToUpper(kind) {
			case "USER":
				pendingUser = value
				_ = text.PrintfLine("381 password required")
			case "PASS":
				s.mu.Lock()
				ok := pendingUser == s.username && value == s.password
				s.mu.Unlock()
				if ok {
					authed = true
					_ = text.PrintfLine("281 authentication accepted")
				} else {
					_ = text.PrintfLine("481 authentication failed")
				}
			default:
				_ = text.PrintfLine("501 unknown authinfo")
			}

		case "GROUP":
			if !authed {
				_ = text.PrintfLine("480 authentication required")
				continue
			}
			_ = text.PrintfLine("211 0 1 0 %s", rest)

		case "POST":
			if !authed {
				_ = text.PrintfLine("480 authentication required")
				continue
			}
			if readOnly {
				_ = text.PrintfLine("440 posting not allowed")
				continue
			}
			s.receivePost(text)

		case "ARTICLE", "HEAD", "STAT":
			if !authed {
				_ = text.PrintfLine("480 authentication required")
				continue
			}
			s.sendArticle(text, strings.ToUpper(verb), strings.TrimSpace(rest))

		default:
			_ = text.PrintfLine("500 unknown command")
		}
	}
}

// receivePost reads the article data after a 340 and stores it.
func (s *Server) receivePost(text *textproto.Conn) {
	_ = text.PrintfLine("340 send article")

	raw, err := text.ReadDotBytes()
	if err != nil {
		return
	}

	s.mu.Lock()
	shouldFail := s.failPosts > 0
	if shouldFail {
		s.failPosts--
	}
	s.mu.Unlock()
	if shouldFail {
		_ = text.PrintfLine("441 posting failed")
		return
	}

	head, armored := splitAtBlank(raw)
	headers := parseHead(head)
	messageID := headers["Message-ID"]
	if messageID == "" {
		_ = text.PrintfLine("441 missing message-id")
		return
	}

	_, body, err := yenc.Decode(armored)
	if err != nil {
		_ = text.PrintfLine("441 malformed body")
		return
	}

	s.mu.Lock()
	s.articles[messageID] = &storedArticle{
		messageID: messageID,
		subject:   headers["Subject"],
		headRaw:   head,
		body:      body,
	}
	s.postOrder = append(s.postOrder, messageID)
	s.mu.Unlock()

	_ = text.PrintfLine("240 article received")
}

// sendArticle answers ARTICLE, HEAD or STAT for one message ID.
func (s *Server) sendArticle(text *textproto.Conn, verb, messageID string) {
	s.mu.Lock()
	a, ok := s.articles[messageID]
	var subject string
	var head, body []byte
	if ok {
		subject = a.subject
		head = append([]byte(nil), a.headRaw...)
		body = append([]byte(nil), a.body...)
	}
	s.mu.Unlock()

	if !ok {
		_ = text.PrintfLine("430 no such article")
		return
	}

	switch verb {
	case "STAT":
		_ = text.PrintfLine("223 0 %s", messageID)

	case "HEAD":
		_ = text.PrintfLine("221 0 %s", messageID)
		w := text.DotWriter()
		_, _ = w.Write(head)
		_, _ = w.Write([]byte("\n"))
		_ = w.Close()

	case "ARTICLE":
		_ = text.PrintfLine("220 0 %s", messageID)
		w := text.DotWriter()
		_, _ = w.Write(head)
		_, _ = w.Write([]byte("\n\n"))
		_, _ = w.Write(yenc.Encode(subject, body))
		_ = w.Close()
	}
}

// splitAtBlank cuts a received article at the first blank line. ReadDotBytes
// normalizes line endings to bare LF.
func splitAtBlank(raw []byte) (head, body []byte) {
	if idx := bytes.Index(raw, []byte("\n\n")); idx != -1 {
		return raw[:idx], raw[idx+2:]
	}
	return raw, nil
}

// parseHead extracts "Key: value" pairs from a raw header block.
func parseHead(head []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(head), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
		if strings.EqualFold(key, "Message-Id") {
			key = "Message-ID"
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}
