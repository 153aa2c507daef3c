package station

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sctest/station/internal/diag"
)

// ErrNoReports means nothing has been archived yet. It is informational.
var ErrNoReports = errors.New("no report generated yet")

const (
	reportPrefix     = "rapport_diagnostic_"
	reportExt        = ".pdf"
	reportTimeLayout = "20060102_150405"
)

// Archive writes report artifacts into a fixed directory, one file per
// report, named after the generation time.
type Archive struct {
	dir string
	now func() time.Time
}

// NewArchive creates dir if needed.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &Archive{dir: dir, now: time.Now}, nil
}

// Dir returns the report directory.
func (a *Archive) Dir() string { return a.dir }

// ReportName returns the artifact name for a report generated at t.
func ReportName(t time.Time) string {
	return reportPrefix + t.Format(reportTimeLayout) + reportExt
}

// Save renders rep and writes it under a timestamped name. A name already
// taken within the same second gets a numeric suffix.
func (a *Archive) Save(rep diag.Report) (string, error) {
	generated := a.now()
	data, err := GenerateReportPDF(rep, generated)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(ReportName(generated), reportExt)
	for n := 1; ; n++ {
		name := base + reportExt
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, reportExt)
		}
		path := filepath.Join(a.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create report: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
		slog.Info("report saved", "path", path, "entries", len(rep.Entries))
		return path, nil
	}
}

// List returns archived report paths, newest first.
func (a *Archive) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), reportPrefix) || !strings.HasSuffix(e.Name(), reportExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(byReportName(names)))
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(a.dir, n)
	}
	return paths, nil
}

// Latest returns the newest report, or ErrNoReports.
func (a *Archive) Latest() (string, error) {
	paths, err := a.List()
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", ErrNoReports
	}
	return paths[0], nil
}

// byReportName orders names by timestamp, then by collision suffix, so
// "x_2.pdf" sorts after "x.pdf".
type byReportName []string

func (s byReportName) Len() int      { return len(s) }
func (s byReportName) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byReportName) Less(i, j int) bool {
	ti, ni := splitReportName(s[i])
	tj, nj := splitReportName(s[j])
	if ti != tj {
		return ti < tj
	}
	return ni < nj
}

func splitReportName(name string) (stamp string, n int) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportExt)
	if len(stem) <= len(reportTimeLayout) {
		return stem, 1
	}
	stamp = stem[:len(reportTimeLayout)]
	if _, err := fmt.Sscanf(stem[len(reportTimeLayout):], "_%d", &n); err != nil {
		return stem, 1
	}
	return stamp, n
}
