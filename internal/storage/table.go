package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// ErrMalformedTable is returned when the persisted table has no usable header.
var ErrMalformedTable = errors.New("malformed dataset table")

// WriteTable encodes ds as CSV: a header row, one row per repository, then the TOTAL row.
// The Total column is derived on the fly.
func WriteTable(w io.Writer, ds *domain.Dataset) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(ds.Dates)+2)
	header = append(header, domain.RepositoryHeader)
	for _, date := range ds.Dates {
		header = append(header, date.String())
	}
	header = append(header, domain.TotalColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	writeRow := func(name string, cells map[domain.Date]domain.Cell, total domain.Cell) error {
		record := make([]string, 0, len(header))
		record = append(record, name)
		for _, date := range ds.Dates {
			record = append(record, cells[date].String())
		}
		record = append(record, total.String())
		return cw.Write(record)
	}
	for _, repo := range ds.Repositories {
		if err := writeRow(repo, ds.Entries[repo], ds.RowTotal(repo)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", repo, err)
		}
	}
	if err := writeRow(domain.AggregateRow, ds.Aggregate, ds.AggregateTotal()); err != nil {
		return fmt.Errorf("failed to write aggregate row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// ReadTable decodes a table written by WriteTable.
// The Total column and any non-date column are ignored, malformed cells decode as 0(0)
// and short rows are padded with zero cells. An empty input is an empty dataset.
func ReadTable(r io.Reader) (*domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	ds := domain.NewDataset()
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) == 0 || header[0] != domain.RepositoryHeader {
		return nil, fmt.Errorf("%w: first column must be %q", ErrMalformedTable, domain.RepositoryHeader)
	}

	columns := make(map[int]domain.Date)
	for i, name := range header[1:] {
		date, err := domain.ParseDate(name)
		if err != nil || ds.HasDate(date) {
			continue
		}
		columns[i+1] = date
		ds.Dates = append(ds.Dates, date)
	}
	sort.Slice(ds.Dates, func(i, j int) bool { return ds.Dates[i] < ds.Dates[j] })

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}

		row := make(map[domain.Date]domain.Cell, len(ds.Dates))
		for _, date := range ds.Dates {
			row[date] = domain.Cell{}
		}
		for i, date := range columns {
			if i < len(record) {
				row[date] = domain.DecodeCell(record[i])
			}
		}

		name := record[0]
		if name == domain.AggregateRow {
			ds.Aggregate = row
			continue
		}
		if _, seen := ds.Entries[name]; seen {
			continue
		}
		ds.Repositories = append(ds.Repositories, name)
		ds.Entries[name] = row
	}
	return ds, nil
}
