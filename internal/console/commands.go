package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sctest/station/internal/diag"
	"github.com/sctest/station/internal/station"
)

// Operator is the part of the station the console drives.
type Operator interface {
	RunRemoteTest(name string)
	Confirm(name string, passed bool) error
	Snapshot() diag.Report
	RenderSnapshot() (string, error)
	LatestReport() (string, error)
	Reports() ([]string, error)
}

const helpText = `Commandes :
  run <test>   lancer un test sur le téléphone
  ok <test>    valider un test manuel
  ko <test>    refuser un test manuel
  board        afficher l'état des tests
  report       générer le rapport PDF
  open         ouvrir le dernier rapport
  list         lister les rapports
  quit         quitter`

// ReadCommands reads one command per line from in until EOF, "quit" or ctx
// is done. Command errors are printed, never returned.
func (c *Console) ReadCommands(ctx context.Context, in io.Reader, op Operator) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if !c.Exec(op, sc.Text()) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

// Exec runs one command line. It returns false on "quit".
func (c *Console) Exec(op Operator, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "run":
		if arg == "" {
			c.println("usage : run <test>")
			break
		}
		op.RunRemoteTest(arg)
	case "ok", "ko":
		if arg == "" {
			c.println("usage : " + cmd + " <test>")
			break
		}
		if err := op.Confirm(arg, strings.EqualFold(cmd, "ok")); err != nil {
			c.println(c.warn.Render("Erreur") + " : " + err.Error())
		}
	case "board":
		c.Board(op.Snapshot())
	case "report":
		path, err := op.RenderSnapshot()
		if err != nil {
			c.println(c.warn.Render("Erreur rapport") + " : " + err.Error())
			break
		}
		c.println("📄 Rapport généré : " + path)
	case "open":
		path, err := op.LatestReport()
		if errors.Is(err, station.ErrNoReports) {
			c.println("Aucun rapport généré pour le moment.")
			break
		}
		if err == nil {
			err = c.Open(path)
		}
		if err != nil {
			c.println(c.warn.Render("Erreur") + " : " + err.Error())
		}
	case "list":
		paths, err := op.Reports()
		if err != nil {
			c.println(c.warn.Render("Erreur") + " : " + err.Error())
			break
		}
		if len(paths) == 0 {
			c.println("Aucun rapport généré pour le moment.")
		}
		for _, p := range paths {
			c.println("  " + p)
		}
	case "help", "?":
		c.println(helpText)
	case "quit", "exit":
		return false
	default:
		c.println(fmt.Sprintf("commande inconnue %q, tapez « help »", cmd))
	}
	return true
}
