package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"
	models "github.com/slobbe/zap/internal/types"
)

var fuzzyFind = fuzzyfinder.Find

// Prompter asks the user questions. With Interactive set, choices use a
// fuzzy finder; otherwise a numbered list is read from In.
type Prompter struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool

	reader *bufio.Reader
}

func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{In: in, Out: out, Interactive: interactive}
}

// Choose matches core.Chooser.
func (p *Prompter) Choose(prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, models.ErrNothingToChoose
	}

	if p.Interactive {
		idx, err := fuzzyFind(items, func(i int) string { return items[i] },
			fuzzyfinder.WithPromptString(prompt+"> "))
		if err != nil {
			if errors.Is(err, fuzzyfinder.ErrAbort) {
				return 0, models.ErrAborted
			}
			return 0, fmt.Errorf("selection failed: %w", err)
		}
		return idx, nil
	}

	fmt.Fprintf(p.Out, "%s:\n", prompt)
	for i, item := range items {
		fmt.Fprintf(p.Out, "  %d) %s\n", i+1, item)
	}
	fmt.Fprintf(p.Out, "Enter a number [1-%d]: ", len(items))

	line, err := p.readLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(items) {
		return 0, fmt.Errorf("invalid selection %q", line)
	}
	return n - 1, nil
}

// Confirm matches core.Confirmer. Only y and yes, in any case, count as yes.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(p.Out, "%s [y/N] ", prompt)
	line, err := p.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return ParseYesNo(line), nil
}

func ParseYesNo(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (p *Prompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
