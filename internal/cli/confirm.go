package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"keuangan/internal/services"
)

// promptConfirmer asks on out and reads a y/N answer from in. An empty answer
// or end of input means no.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newConfirmer(in io.Reader, out io.Writer, yes bool) services.Confirmer {
	if yes {
		return services.AlwaysConfirm
	}
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *promptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "ya":
		return true, nil
	}
	return false, nil
}
