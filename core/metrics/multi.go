package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordProgress forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordProgress(ev ProgressEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordProgress(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition forwards transitions to sinks that support them.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordActiveTasks forwards the running calculator count.
func (m *MultiSink) RecordActiveTasks(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ActiveTasksRecorder); ok {
			if err := rec.RecordActiveTasks(n); err != nil {
				return err
			}
		}
	}
	return nil
}
