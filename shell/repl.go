package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// Prompt is shown before each command in interactive mode.
const Prompt = "$ "

// A LineReader delivers command lines one at a time. It returns io.EOF at
// the end of the input.
type LineReader interface {
	ReadLine() (string, error)
}

type batchReader struct {
	scanner *bufio.Scanner
}

// NewBatchReader reads lines from in without prompting.
func NewBatchReader(in io.Reader) LineReader {
	return &batchReader{scanner: bufio.NewScanner(in)}
}

func (r *batchReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

// PromptReader reads lines from a terminal with line editing.
type PromptReader struct {
	rl *readline.Instance
}

// NewPromptReader creates a PromptReader showing Prompt.
func NewPromptReader(in io.ReadCloser, out io.Writer) (*PromptReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: Prompt,
		Stdin:  in,
		Stdout: out,
	})
	if err != nil {
		return nil, err
	}

	return &PromptReader{rl: rl}, nil
}

// ReadLine reads one line. An interrupt discards the line being typed.
func (r *PromptReader) ReadLine() (string, error) {
	for {
		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}

		return line, err
	}
}

// Close restores the terminal.
func (r *PromptReader) Close() error {
	return r.rl.Close()
}

// IsTerminal tells whether fd is attached to a terminal.
func IsTerminal(fd uintptr) bool {
	return readline.IsTerminal(int(fd))
}

// PrintBanner writes the version line and the help text.
func (s *Shell) PrintBanner() {
	fmt.Fprintln(s.out, Version)
	s.help(nil)
}

// Serve executes lines from r until quit or the end of the input.
func (s *Shell) Serve(r LineReader) error {
	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		if s.Execute(line) == CodeQuit {
			return nil
		}
	}
}
