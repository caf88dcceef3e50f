package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// IngestReport summarizes an IngestDir run.
type IngestReport struct {
	Found   int               `json:"found"`
	Learned int               `json:"learned"`
	Failed  map[string]string `json:"failed,omitempty"` // file name -> reason
	Total   int               `json:"total"`            // library size afterwards
}

var referenceExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IngestDir learns every reference image in dir. The label comes from the
// file name and the category is guessed from the label. A file that cannot
// be decoded or embedded is recorded in the report and skipped.
func IngestDir(ctx context.Context, base *Base, dir string) (*IngestReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if referenceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	report := &IngestReport{Found: len(files), Failed: map[string]string{}}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		path := filepath.Join(dir, name)
		label := LabelFromFilename(name)
		category := GuessCategory(label)

		img, err := imaging.Open(path)
		if err != nil {
			base.logger.Warn("could not open reference image", "file", name, "error", err)
			report.Failed[name] = err.Error()
			continue
		}
		if _, err := base.AddSymbol(ctx, img, label, category, path); err != nil {
			report.Failed[name] = err.Error()
			continue
		}
		report.Learned++
	}

	total, err := base.Count(ctx)
	if err != nil {
		return report, err
	}
	report.Total = total
	base.logger.Info("ingestion complete", "found", report.Found, "learned", report.Learned, "failed", len(report.Failed), "total", total)
	return report, nil
}
