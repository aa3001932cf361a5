package adapter

import (
	"context"
	"io"
	"os"
	"sync"

	"charm.land/lipgloss/v2"
)

var (
	cliAddressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	cliTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// CLIAdapter prints deliveries to a terminal. It backs the "cli" channel
// used for local runs.
type CLIAdapter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewCLIAdapter(out io.Writer) *CLIAdapter {
	if out == nil {
		out = os.Stdout
	}
	return &CLIAdapter{out: out}
}

func (a *CLIAdapter) Name() string {
	return "cli"
}

func (a *CLIAdapter) Send(ctx context.Context, address string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := lipgloss.Fprintln(a.out, cliAddressStyle.Render("[navi → "+address+"]"), cliTextStyle.Render(text))
	return err
}

func (a *CLIAdapter) Health(ctx context.Context) error {
	return nil
}
