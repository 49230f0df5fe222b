// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/streambrr/internal/app"
	"github.com/autobrr/streambrr/internal/domain"
)

// Collector exposes the latest service snapshots as Prometheus gauges.
// It only reads published state, so a scrape never blocks on a service
// loop or the qBittorrent subprocess.
type Collector struct {
	state *app.State

	torrentsDesc   *prometheus.Desc
	downloadsDesc  *prometheus.Desc
	entriesDesc    *prometheus.Desc
	subtitlesDesc  *prometheus.Desc
	processingDesc *prometheus.Desc
}

func NewCollector(state *app.State) *Collector {
	return &Collector{
		state: state,

		torrentsDesc: prometheus.NewDesc(
			"streambrr_torrents_total",
			"Number of torrents in the supervised qBittorrent by state",
			[]string{"state"},
			nil,
		),
		downloadsDesc: prometheus.NewDesc(
			"streambrr_downloads_total",
			"Number of owned downloads by client-facing state",
			[]string{"state"},
			nil,
		),
		entriesDesc: prometheus.NewDesc(
			"streambrr_media_entries_total",
			"Number of media library entries by kind",
			[]string{"kind"},
			nil,
		),
		subtitlesDesc: prometheus.NewDesc(
			"streambrr_subtitles_total",
			"Number of subtitles paired into the media library",
			nil,
			nil,
		),
		processingDesc: prometheus.NewDesc(
			"streambrr_processing_torrents",
			"Number of torrents currently being prepared",
			nil,
			nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.torrentsDesc
	ch <- c.downloadsDesc
	ch <- c.entriesDesc
	ch <- c.subtitlesDesc
	ch <- c.processingDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	torrents := c.state.Torrents.Latest()
	processing := c.state.Processing.Latest()

	byState := make(map[string]int)
	for _, t := range torrents {
		byState[string(t.State)]++
	}
	for state, count := range byState {
		ch <- prometheus.MustNewConstMetric(
			c.torrentsDesc,
			prometheus.GaugeValue,
			float64(count),
			state,
		)
	}

	// The download states form a small closed set, so every label value
	// is emitted each scrape and dashboards get continuous series.
	byDownload := map[domain.DownloadState]int{
		domain.DownloadPaused:     0,
		domain.DownloadFailed:     0,
		domain.DownloadInProgress: 0,
		domain.DownloadProcessing: 0,
		domain.DownloadComplete:   0,
	}
	for _, t := range torrents {
		if d, ok := domain.DownloadFor(t, processing.Has(t.Hash)); ok {
			byDownload[d.State]++
		}
	}
	for state, count := range byDownload {
		ch <- prometheus.MustNewConstMetric(
			c.downloadsDesc,
			prometheus.GaugeValue,
			float64(count),
			string(state),
		)
	}

	catalog := c.state.Media.Latest()
	movies, series, subtitles := 0, 0, 0
	for _, entry := range catalog {
		if entry.IsSeries() {
			series++
			for _, episodes := range entry.Series {
				for _, paths := range episodes {
					subtitles += len(paths.Subtitles)
				}
			}
			continue
		}
		movies++
		if entry.Movie != nil {
			subtitles += len(entry.Movie.Subtitles)
		}
	}
	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(movies), "movie")
	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(series), "series")
	ch <- prometheus.MustNewConstMetric(c.subtitlesDesc, prometheus.GaugeValue, float64(subtitles))
	ch <- prometheus.MustNewConstMetric(c.processingDesc, prometheus.GaugeValue, float64(len(processing)))
}
