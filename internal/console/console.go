// Package console is the operator's terminal: it prints station events,
// renders the status board and reads operator commands.
package console

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/sctest/station/internal/diag"
	"github.com/sctest/station/internal/station"
)

// Console writes to a single output. Colors are used only when the output
// is a color terminal.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	// Open displays a report artifact. Defaults to the platform viewer.
	Open func(path string) error

	title  lipgloss.Style
	dim    lipgloss.Style
	warn   lipgloss.Style
	status map[diag.Result]lipgloss.Style
}

// New creates a Console writing to out.
func New(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:   out,
		Open:  openFile,
		title: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Faint(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#CC0000")).Bold(true),
		status: map[diag.Result]lipgloss.Style{
			diag.Pass:     r.NewStyle().Foreground(lipgloss.Color("#009900")).Bold(true),
			diag.Fail:     r.NewStyle().Foreground(lipgloss.Color("#CC0000")).Bold(true),
			diag.Untested: r.NewStyle().Foreground(lipgloss.Color("#999900")),
		},
	}
}

// Interactive reports whether f is a terminal.
func Interactive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Show prints one station event.
func (c *Console) Show(ev station.Event) {
	switch ev.Kind {
	case station.EventLink:
		if ev.Link == diag.StateConnected {
			c.println(c.title.Render("📱 Connecté") + " " + c.dim.Render(ev.Peer.Addr))
		} else {
			c.println(c.dim.Render("En attente que l'application Mobile se connecte..."))
		}
	case station.EventResult:
		line := ev.Label + " : " + c.status[ev.Result].Render(ev.Result.String())
		if ev.Manual {
			line += " " + c.dim.Render("(opérateur)")
		}
		c.println(line)
	case station.EventConfirmRequest:
		c.println(c.title.Render(ev.Label) + " : validez avec « ok " + ev.WireID + " » ou « ko " + ev.WireID + " »")
	case station.EventBattery:
		c.println(fmt.Sprintf("🔋 Batterie : %d%% (%s)", ev.Battery.Level, ev.Battery.State))
	case station.EventReport:
		if ev.Err != nil {
			c.println(c.warn.Render("Erreur rapport") + " : " + ev.Err.Error())
			return
		}
		c.println(fmt.Sprintf("📄 Rapport reçu (%d tests) : %s", ev.Entries, ev.Path))
	}
}

// Drain shows events until the channel is closed.
func (c *Console) Drain(events <-chan station.Event) {
	for ev := range events {
		c.Show(ev)
	}
}

// Board prints every test with its current result.
func (c *Console) Board(rep diag.Report) {
	width := 0
	for _, e := range rep.Entries {
		width = max(width, lipgloss.Width(e.Label))
	}
	var b strings.Builder
	b.WriteString(c.title.Render("Tests"))
	for _, e := range rep.Entries {
		b.WriteString("\n  ")
		b.WriteString(padRight(e.Label, width))
		b.WriteString("  ")
		b.WriteString(c.status[e.Result].Render(e.Result.String()))
	}
	c.println(b.String())
}

// padRight pads s to the given visual width.
func padRight(s string, width int) string {
	vw := lipgloss.Width(s)
	if vw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-vw)
}

func openFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	go cmd.Wait()
	return nil
}
