package audio

const (
	DefaultGateThreshold  = 0.01
	DefaultPlaybackFactor = 4.0
)

// NoiseGate passes frames whose RMS level reaches the threshold. While the
// model is speaking the threshold is multiplied by PlaybackFactor so that
// speaker echo does not reach the model.
type NoiseGate struct {
	Threshold      float64
	PlaybackFactor float64
}

// NewNoiseGate returns a gate with the default thresholds.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{
		Threshold:      DefaultGateThreshold,
		PlaybackFactor: DefaultPlaybackFactor,
	}
}

// Level returns the effective threshold.
func (g *NoiseGate) Level(playing bool) float64 {
	if playing {
		return g.Threshold * g.PlaybackFactor
	}
	return g.Threshold
}

// Open reports whether a frame at rms passes the gate.
func (g *NoiseGate) Open(rms float64, playing bool) bool {
	return rms >= g.Level(playing)
}

// Smoother is an exponential moving average used for the host volume meter.
type Smoother struct {
	Alpha float64
	value float64
}

// Update feeds a new level and returns the smoothed value in 0..1.
func (s *Smoother) Update(level float64) float64 {
	alpha := s.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	s.value = alpha*level + (1-alpha)*s.value
	if s.value > 1 {
		s.value = 1
	}
	if s.value < 0 {
		s.value = 0
	}
	return s.value
}
