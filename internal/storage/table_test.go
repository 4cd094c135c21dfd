package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// sampleDataset is the dataset of two repositories over two days.
func sampleDataset() *domain.Dataset {
	ds := domain.NewDataset()
	ds.Repositories = []string{"repoB", "repoA"}
	ds.Dates = []domain.Date{"2025-06-01", "2025-06-02"}
	ds.Entries["repoB"] = map[domain.Date]domain.Cell{"2025-06-01": {Views: 5, Clones: 2}, "2025-06-02": {Views: 1, Clones: 1}}
	ds.Entries["repoA"] = map[domain.Date]domain.Cell{"2025-06-01": {}, "2025-06-02": {Views: 3}}
	ds.Aggregate = map[domain.Date]domain.Cell{"2025-06-01": {Views: 5, Clones: 2}, "2025-06-02": {Views: 4, Clones: 1}}
	return ds
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleDataset()))

	expected := "Repository,2025-06-01,2025-06-02,Total\n" +
		"repoB,5(2),1(1),6(3)\n" +
		"repoA,0(0),3(0),3(0)\n" +
		"TOTAL,5(2),4(1),9(3)\n"
	assert.Equal(t, expected, buf.String())
}

func TestReadTable(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    *domain.Dataset
		expectError bool
	}{
		{
			name:     "round trip of a written table",
			input:    "Repository,2025-06-01,2025-06-02,Total\nrepoB,5(2),1(1),6(3)\nrepoA,0(0),3(0),3(0)\nTOTAL,5(2),4(1),9(3)\n",
			expected: sampleDataset(),
		},
		{
			name:  "malformed cells and short rows decode as zero",
			input: "Repository,2025-06-01,2025-06-02,Total\nrepoA,oops,\nTOTAL,1(1),2(2),3(3)\n",
			expected: &domain.Dataset{
				Repositories: []string{"repoA"},
				Dates:        []domain.Date{"2025-06-01", "2025-06-02"},
				Entries:      map[string]map[domain.Date]domain.Cell{"repoA": {"2025-06-01": {}, "2025-06-02": {}}},
				Aggregate:    map[domain.Date]domain.Cell{"2025-06-01": {Views: 1, Clones: 1}, "2025-06-02": {Views: 2, Clones: 2}},
			},
		},
		{
			name:  "unsorted and unknown columns",
			input: "Repository,2025-06-02,notes,2025-06-01,Total\nrepoA,1(0),hello,2(0),3(0)\n",
			expected: &domain.Dataset{
				Repositories: []string{"repoA"},
				Dates:        []domain.Date{"2025-06-01", "2025-06-02"},
				Entries:      map[string]map[domain.Date]domain.Cell{"repoA": {"2025-06-01": {Views: 2}, "2025-06-02": {Views: 1}}},
				Aggregate:    map[domain.Date]domain.Cell{},
			},
		},
		{
			name:     "empty input",
			input:    "",
			expected: domain.NewDataset(),
		},
		{
			name:        "error case - missing Repository header",
			input:       "Name,2025-06-01\nrepoA,1(1)\n",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := ReadTable(strings.NewReader(tc.input))
			if tc.expectError {
				assert.ErrorIs(t, err, ErrMalformedTable)
				assert.Nil(t, ds)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ds)
		})
	}
}
