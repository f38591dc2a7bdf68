// Package confirm implements the interactive yes/no prompt used before each
// deletion in confirmation mode.
package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when the input stream ends before a valid answer
var ErrNoInput = errors.New("confirmation input closed")

// State of a single confirmation exchange
type State int

const (
	AwaitingInput State = iota
	Confirmed
	Rejected
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Next returns the state reached after reading answer while awaiting input.
// Only the exact tokens "y" and "n" leave AwaitingInput; the line
// terminator is the only thing stripped.
func Next(answer string) State {
	switch strings.TrimRight(answer, "\r\n") {
	case "y":
		return Confirmed
	case "n":
		return Rejected
	default:
		return AwaitingInput
	}
}

// Asker asks a yes/no question and blocks until it is answered
type Asker interface {
	Confirm(question string) (bool, error)
}

// Prompter asks questions on out and reads answers line by line from in
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter. in is typically os.Stdin.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm writes question and re-asks it until the answer is "y" or "n".
// There is no retry limit; it returns ErrNoInput only when the input ends.
func (p *Prompter) Confirm(question string) (bool, error) {
	state := AwaitingInput
	for state == AwaitingInput {
		if _, err := fmt.Fprint(p.out, question); err != nil {
			return false, err
		}
		line, err := p.in.ReadString('\n')
		if line != "" {
			state = Next(line)
		}
		if state != AwaitingInput {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
				return false, ErrNoInput
			}
			return false, err
		}
	}
	return state == Confirmed, nil
}
