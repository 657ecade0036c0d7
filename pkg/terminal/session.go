package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// TTYPath is the controlling terminal. Git runs hooks with stdin on
// /dev/null, so questions are asked here instead.
const TTYPath = "/dev/tty"

// Session errors.
var (
	ErrInterrupted = errors.New("interrupted")
	ErrNoTerminal  = errors.New("no terminal available")
)

type lineResult struct {
	line string
	err  error
}

// Session asks questions on a terminal. Prompts honor context cancellation
// so an interrupt never leaves the caller stuck on a read.
type Session struct {
	mu      sync.Mutex
	reader  *bufio.Reader
	out     io.Writer
	closer  io.Closer
	pending chan lineResult
	once    sync.Once
}

// OpenTTY opens the controlling terminal for reading and writing.
func OpenTTY() (*Session, error) {
	tty, err := os.OpenFile(TTYPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTerminal, err)
	}

	if !term.IsTerminal(int(tty.Fd())) {
		tty.Close()

		return nil, fmt.Errorf("%w: %s is not a terminal", ErrNoTerminal, TTYPath)
	}

	return NewSession(tty, tty, tty), nil
}

// NewSession builds a session over arbitrary streams. closer may be nil.
func NewSession(in io.Reader, out io.Writer, closer io.Closer) *Session {
	return &Session{reader: bufio.NewReader(in), out: out, closer: closer}
}

// Prompt writes question and waits for one line. The trailing newline is
// stripped. Cancellation yields an error wrapping ErrInterrupted; closed input
// yields io.EOF.
func (s *Session) Prompt(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}

	fmt.Fprint(s.out, question)

	if s.pending == nil {
		ch := make(chan lineResult, 1)
		s.pending = ch

		go func() {
			line, err := s.reader.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(s.out)

		return "", fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	case res := <-s.pending:
		s.pending = nil

		if res.err != nil && res.line == "" {
			if errors.Is(res.err, io.EOF) {
				return "", io.EOF
			}

			return "", fmt.Errorf("read answer: %w", res.err)
		}

		return strings.TrimRight(res.line, "\r\n"), nil
	}
}

// Close releases the terminal. It is safe to call more than once.
func (s *Session) Close() error {
	var err error

	s.once.Do(func() {
		if s.closer != nil {
			err = s.closer.Close()
		}
	})

	return err
}
