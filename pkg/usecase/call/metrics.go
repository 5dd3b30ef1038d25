package call

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_sessions_started_total",
		Help: "Connect attempts that reached the Connecting state",
	})

	metricSessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "call_session_state",
		Help: "1 for the current session state, 0 otherwise",
	}, []string{"state"})

	metricSessionEnds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_session_ends_total",
		Help: "Sessions ended, by cause",
	}, []string{"cause"})

	metricZombieChannels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_zombie_channels_closed_total",
		Help: "Channels whose handshake finished after the session was disconnected",
	})

	metricInterruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_interruptions_total",
		Help: "Barge-in interruptions signalled by the model",
	})

	metricFlushedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_playback_chunks_flushed_total",
		Help: "Scheduled playback chunks discarded by interruptions or disconnects",
	})

	metricStaleAudio = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_stale_audio_dropped_total",
		Help: "Decoded audio chunks discarded because the epoch advanced",
	})

	metricStaleToolResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_stale_tool_results_dropped_total",
		Help: "Tool results discarded because the epoch advanced or the call was cancelled",
	})

	metricGatedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_gated_frames_total",
		Help: "Microphone frames replaced by silence by the noise gate",
	})

	metricToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "call_tool_duration_seconds",
		Help:    "Tool execution latency",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"tool", "status"})
)
