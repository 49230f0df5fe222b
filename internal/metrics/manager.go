// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/streambrr/internal/app"
)

type Manager struct {
	registry  *prometheus.Registry
	collector *Collector
}

// NewManager builds the private registry. processUp reports whether the
// managed qbittorrent-nox subprocess is running; nil leaves the gauge out.
func NewManager(state *app.State, processUp func() bool) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector := NewCollector(state)
	registry.MustRegister(collector)

	if processUp != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "streambrr_qbittorrent_up",
			Help: "Whether the managed qbittorrent-nox subprocess is running",
		}, func() float64 {
			if processUp() {
				return 1
			}
			return 0
		}))
	}

	log.Info().Msg("Metrics manager initialized with service state collector")

	return &Manager{
		registry:  registry,
		collector: collector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
