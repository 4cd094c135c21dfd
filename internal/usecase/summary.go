package usecase

import (
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// SeriesSummary describes one signal over every (repository, target date) pair of a run.
type SeriesSummary struct {
	Sum    float64
	Mean   float64
	Median float64
	Max    float64
}

// Summary describes the cells collected by a run.
type Summary struct {
	Views  SeriesSummary
	Clones SeriesSummary
}

// Summarize computes the run summary. Pairs missing from the batch count as zero.
func Summarize(batch domain.FetchBatch, repos []string, targets []domain.Date) Summary {
	var views, clones []int
	for _, date := range targets {
		for _, repo := range repos {
			cell, _ := batch.Get(date, repo)
			views = append(views, cell.Views)
			clones = append(clones, cell.Clones)
		}
	}
	return Summary{
		Views:  summarizeSeries(stats.LoadRawData(views)),
		Clones: summarizeSeries(stats.LoadRawData(clones)),
	}
}

func summarizeSeries(data stats.Float64Data) SeriesSummary {
	if data.Len() == 0 {
		return SeriesSummary{}
	}
	// stats only fails on empty input.
	sum, _ := stats.Sum(data)
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	maximum, _ := stats.Max(data)
	return SeriesSummary{Sum: sum, Mean: mean, Median: median, Max: maximum}
}
