package marketdata

import "strings"

// StaticVolumeSource serves average daily volumes from configuration. It has
// no intraday profile, so VWAP orders slice evenly.
type StaticVolumeSource struct {
	averages map[string]float64
	profiles map[string][]float64
}

func NewStaticVolumeSource(averages map[string]float64) *StaticVolumeSource {
	s := &StaticVolumeSource{
		averages: make(map[string]float64, len(averages)),
		profiles: make(map[string][]float64),
	}
	for sym, v := range averages {
		s.averages[strings.ToUpper(sym)] = v
	}
	return s
}

// WithProfile sets the volume series returned for symbol.
func (s *StaticVolumeSource) WithProfile(symbol string, volumes []float64) *StaticVolumeSource {
	s.profiles[strings.ToUpper(symbol)] = append([]float64(nil), volumes...)
	return s
}

func (s *StaticVolumeSource) Volumes(symbol string) ([]float64, error) {
	return append([]float64(nil), s.profiles[strings.ToUpper(symbol)]...), nil
}

func (s *StaticVolumeSource) AverageVolume(symbol string) (float64, bool) {
	v, ok := s.averages[strings.ToUpper(symbol)]
	return v, ok && v > 0
}
