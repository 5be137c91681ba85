package audiomix

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the prometheus collectors a Manager updates as it runs.
// A Manager always has a non-nil Metrics; the collectors simply go
// unregistered (and therefore unscraped) until the host process calls
// Register against its own registry.
type Metrics struct {
	ActiveVoices     prometheus.Gauge
	VoiceExhausted   prometheus.Counter
	FadesCompleted   *prometheus.CounterVec
	StreamUnderruns  prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ActiveVoices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "audio",
			Name:      "active_voices",
			Help:      "Number of Sources currently bound to a mixer voice.",
		}),
		VoiceExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "voice_exhausted_total",
			Help:      "Number of times allocateVoiceID found the voice pool exhausted.",
		}),
		FadesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "fades_completed_total",
			Help:      "Number of fade envelopes that reached their terminal fadeTime.",
		}, []string{"direction"}),
		StreamUnderruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "stream_underrun_total",
			Help:      "Number of stream update ticks whose refill or queueing step returned an error.",
		}),
	}
}

// Register adds every collector to reg. Safe to call once per registry.
func (mx *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{mx.ActiveVoices, mx.VoiceExhausted, mx.FadesCompleted, mx.StreamUnderruns} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (mx *Metrics) setActiveVoices(n int) { mx.ActiveVoices.Set(float64(n)) }
func (mx *Metrics) voiceExhausted()       { mx.VoiceExhausted.Inc() }
func (mx *Metrics) fadeCompleted(dir string) {
	mx.FadesCompleted.WithLabelValues(dir).Inc()
}
func (mx *Metrics) streamUnderrun() { mx.StreamUnderruns.Inc() }
