package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordSink struct {
	progress    int
	transitions int
	err         error
}

func (r *recordSink) RecordProgress(ProgressEvent) error {
	r.progress++
	return r.err
}

func (r *recordSink) RecordTransition(TransitionEvent) error {
	r.transitions++
	return r.err
}

// progressOnly does not implement TransitionRecorder.
type progressOnly struct{ n int }

func (p *progressOnly) RecordProgress(ProgressEvent) error { p.n++; return nil }

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{}
	s2 := &progressOnly{}
	m := NewMultiSink(s1, s2)
	assert.NoError(t, m.RecordProgress(ProgressEvent{}))
	assert.NoError(t, m.RecordTransition(TransitionEvent{}))
	assert.NoError(t, m.RecordActiveTasks(3))
	assert.Equal(t, 1, s1.progress)
	assert.Equal(t, 1, s1.transitions)
	assert.Equal(t, 1, s2.n)
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	assert.ErrorIs(t, m.RecordProgress(ProgressEvent{}), boom)
	assert.Equal(t, 0, s2.progress)
}
