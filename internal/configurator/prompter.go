package configurator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputClosed is returned when input ends before a prompt is answered.
var ErrInputClosed = errors.New("input closed before all settings were answered")

// Answer is the typed outcome of a prompt. Provided is false when the user
// pressed enter without typing anything; Value is then nil.
type Answer struct {
	Value    any
	Provided bool
}

// ParseFunc converts a non-empty answer or explains why it is not acceptable.
type ParseFunc func(text string) (any, error)

// Prompter asks questions on out and reads line answers from in.
type Prompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{sc: bufio.NewScanner(in), out: out}
}

// Ask prints label with def as the shown default and reads one answer.
// Answers rejected by parse are reported and asked again.
func (p *Prompter) Ask(label, def string, parse ParseFunc) (Answer, error) {
	for {
		if def != "" {
			fmt.Fprintf(p.out, "%s [default: %s]: ", label, def)
		} else {
			fmt.Fprintf(p.out, "%s: ", label)
		}

		if !p.sc.Scan() {
			if err := p.sc.Err(); err != nil {
				return Answer{}, fmt.Errorf("read input: %w", err)
			}
			return Answer{}, ErrInputClosed
		}

		text := strings.TrimSpace(p.sc.Text())
		if text == "" {
			return Answer{}, nil
		}

		v, err := parse(text)
		if err != nil {
			fmt.Fprintf(p.out, "Invalid value: %v. Please try again.\n", err)
			continue
		}
		return Answer{Value: v, Provided: true}, nil
	}
}
