package metrics

import coremetrics "github.com/askelund/spotheat/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordCycle(ev coremetrics.CycleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordApply forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordApply(ev coremetrics.ApplyEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordApply(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordLease forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordLease(ev coremetrics.LeaseEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordLease(ev); err != nil {
			return err
		}
	}
	return nil
}
