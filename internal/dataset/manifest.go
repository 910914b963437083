// Package dataset reads session manifests from spreadsheets and writes score
// reports back out as xlsx workbooks.
package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Session is one manifest row to be analyzed.
type Session struct {
	Row      int
	Subject  string
	Owner    string
	InputRef string
}

// LoadManifest reads the first sheet of an xlsx file. Columns are found by header
// name; rows without a media reference are skipped.
func LoadManifest(path string) ([]Session, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	inputIdx, subjectIdx, ownerIdx := -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "video") || strings.Contains(l, "record") || strings.Contains(l, "url") ||
			strings.Contains(l, "link") || strings.Contains(l, "path") || strings.Contains(l, "file"):
			if inputIdx == -1 {
				inputIdx = i
			}
		case strings.Contains(l, "subject") || strings.Contains(l, "topic") || strings.Contains(l, "course"):
			if subjectIdx == -1 {
				subjectIdx = i
			}
		case strings.Contains(l, "owner") || strings.Contains(l, "mentor") || strings.Contains(l, "instructor") ||
			strings.Contains(l, "teacher") || strings.Contains(l, "name"):
			if ownerIdx == -1 {
				ownerIdx = i
			}
		}
	}
	if inputIdx == -1 {
		return nil, fmt.Errorf("no media column in header %v", rows[0])
	}

	var out []Session
	for i, r := range rows {
		if i == 0 {
			continue
		}
		s := Session{
			Row:      i + 1,
			InputRef: cell(r, inputIdx),
			Subject:  cell(r, subjectIdx),
			Owner:    cell(r, ownerIdx),
		}
		if s.InputRef == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
