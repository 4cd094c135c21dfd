package domain

// Dataset is the complete traffic table.
// Entries holds one row per repository; Aggregate is the TOTAL row.
// Every row carries a cell for every date in Dates.
type Dataset struct {
	Repositories []string
	Dates        []Date
	Entries      map[string]map[Date]Cell
	Aggregate    map[Date]Cell
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Entries:   make(map[string]map[Date]Cell),
		Aggregate: make(map[Date]Cell),
	}
}

// Cell returns the cell of repo at date, or the zero cell.
func (d *Dataset) Cell(repo string, date Date) Cell {
	if d == nil {
		return Cell{}
	}
	return d.Entries[repo][date]
}

// HasDate reports whether date is a column of the dataset.
func (d *Dataset) HasDate(date Date) bool {
	if d == nil {
		return false
	}
	for _, existing := range d.Dates {
		if existing == date {
			return true
		}
	}
	return false
}

// RowTotal is the derived Total column for repo.
func (d *Dataset) RowTotal(repo string) Cell {
	var total Cell
	for _, date := range d.Dates {
		total = total.Add(d.Entries[repo][date])
	}
	return total
}

// AggregateTotal is the derived Total column of the TOTAL row.
func (d *Dataset) AggregateTotal() Cell {
	var total Cell
	for _, date := range d.Dates {
		total = total.Add(d.Aggregate[date])
	}
	return total
}

// FetchBatch accumulates cells fetched during one run, keyed by date then repository.
type FetchBatch map[Date]map[string]Cell

// Put records the cell fetched for repo at date.
func (b FetchBatch) Put(date Date, repo string, c Cell) {
	row, ok := b[date]
	if !ok {
		row = make(map[string]Cell)
		b[date] = row
	}
	row[repo] = c
}

// Get returns the cell fetched for repo at date, if any.
func (b FetchBatch) Get(date Date, repo string) (Cell, bool) {
	c, ok := b[date][repo]
	return c, ok
}
