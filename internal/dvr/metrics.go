package dvr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	entries            *prometheus.GaugeVec
	recordingsStarted  prometheus.Counter
	recordingsFinished *prometheus.CounterVec
	dedupSkips         prometheus.Counter
	rebinds            prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &metrics{
		entries: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dvrd_entries",
			Help: "DVR entries by lifecycle state.",
		}, []string{"state"}),
		recordingsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "dvrd_recordings_started_total",
			Help: "Recordings handed to the recorder.",
		}),
		recordingsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dvrd_recordings_finished_total",
			Help: "Recordings that reached a terminal state.",
		}, []string{"result"}),
		dedupSkips: f.NewCounter(prometheus.CounterOpts{
			Name: "dvrd_dedup_skips_total",
			Help: "Rule-created recordings skipped as duplicates.",
		}),
		rebinds: f.NewCounter(prometheus.CounterOpts{
			Name: "dvrd_epg_rebinds_total",
			Help: "Entries bound or rebound to guide broadcasts.",
		}),
	}
}

func (m *metrics) observeStates(entries map[string]*Entry) {
	m.entries.Reset()
	counts := make(map[SchedState]int)
	for _, e := range entries {
		counts[e.schedState]++
	}
	for _, s := range []SchedState{SchedNostate, SchedScheduled, SchedRecording, SchedCompleted, SchedMissedTime} {
		m.entries.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}
