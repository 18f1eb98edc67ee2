package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/search"
)

// SampleWriter streams improvement samples as "time;cost" CSV rows.
type SampleWriter struct {
	w   *csv.Writer
	err error
}

func NewSampleWriter(w io.Writer) *SampleWriter {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return &SampleWriter{w: cw}
}

func (s *SampleWriter) write(record []string) {
	if s.err != nil {
		return
	}
	if err := s.w.Write(record); err != nil {
		s.err = fmt.Errorf("sample writer: %w", err)
	}
}

func (s *SampleWriter) OnStart(*domain.Instance, config.Config) {
	s.write([]string{"time", "cost"})
}

func (s *SampleWriter) OnImprovement(sample domain.Sample, _ domain.RoutePlan) {
	s.write([]string{
		strconv.FormatFloat(sample.Time, 'f', 3, 64),
		strconv.FormatFloat(sample.Cost, 'f', 2, 64),
	})
	s.w.Flush()
}

func (s *SampleWriter) OnFinish(search.Result) {
	s.w.Flush()
	if err := s.w.Error(); err != nil && s.err == nil {
		s.err = fmt.Errorf("sample writer: flush: %w", err)
	}
}

func (s *SampleWriter) Err() error { return s.err }
