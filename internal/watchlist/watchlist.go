// Package watchlist reads the instruments to track from a spreadsheet.
package watchlist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Header is the first row of the watch-list sheet.
const Header = "Instrument_Name"

var (
	// ErrCreated means the file did not exist and an empty template was
	// written in its place; the user must fill it and restart.
	ErrCreated = errors.New("watch-list created; add instruments and restart")
	ErrEmpty   = errors.New("watch-list has no instruments")
)

// Read returns the upper-cased, trimmed names in column A of sheet, starting
// at row 2. A missing file is replaced by an empty template and ErrCreated.
func Read(path, sheet string) ([]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := CreateTemplate(path, sheet); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrCreated, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open watch-list %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}

	var names []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if name := strings.ToUpper(strings.TrimSpace(row[0])); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: sheet %q of %s", ErrEmpty, sheet, path)
	}
	return names, nil
}

// CreateTemplate writes a workbook holding only the header row.
func CreateTemplate(path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet %q: %w", sheet, err)
	}
	if err := f.SetCellStr(sheet, "A1", Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save watch-list template %s: %w", path, err)
	}
	return nil
}

// HeaderMatches reports whether the sheet's first cell is Header. A
// mismatch is worth a warning but rows are still read.
func HeaderMatches(path, sheet string) (bool, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return false, fmt.Errorf("open watch-list %s: %w", path, err)
	}
	defer f.Close()

	v, err := f.GetCellValue(sheet, "A1")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(v) == Header, nil
}
