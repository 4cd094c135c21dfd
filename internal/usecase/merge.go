package usecase

import (
	"sort"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// Merge builds the complete dataset for this run from the prior dataset (nil on a first run)
// and the cells fetched for the target dates.
//
// Rows are repos in the given order. Columns are the union of prior and target dates, sorted.
// A fetched cell overrides the stored one for the same date, so re-collecting a date corrects it.
// The aggregate row is always recomputed; a stored TOTAL is never read.
// Merge does not modify its inputs.
func Merge(prior *domain.Dataset, fetched domain.FetchBatch, repos []string, targets []domain.Date) *domain.Dataset {
	out := domain.NewDataset()
	out.Repositories = uniqueRepos(repos)
	out.Dates = mergeDates(prior, targets)
	for _, date := range out.Dates {
		out.Aggregate[date] = domain.Cell{}
	}

	for _, repo := range out.Repositories {
		row := make(map[domain.Date]domain.Cell, len(out.Dates))
		for _, date := range out.Dates {
			cell, ok := fetched.Get(date, repo)
			if !ok {
				cell = prior.Cell(repo, date)
			}
			row[date] = cell
			out.Aggregate[date] = out.Aggregate[date].Add(cell)
		}
		out.Entries[repo] = row
	}
	return out
}

func uniqueRepos(repos []string) []string {
	seen := make(map[string]struct{}, len(repos))
	out := make([]string, 0, len(repos))
	for _, repo := range repos {
		if _, ok := seen[repo]; ok {
			continue
		}
		seen[repo] = struct{}{}
		out = append(out, repo)
	}
	return out
}

func mergeDates(prior *domain.Dataset, targets []domain.Date) []domain.Date {
	seen := make(map[domain.Date]struct{})
	var dates []domain.Date
	add := func(d domain.Date) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	if prior != nil {
		for _, d := range prior.Dates {
			add(d)
		}
	}
	for _, d := range targets {
		add(d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}
