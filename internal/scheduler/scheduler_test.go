package scheduler

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunNow_SumsSweepers(t *testing.T) {
	s := New(nil)
	s.Add("contexts", SweepFunc(func() int { return 2 }))
	s.Add("quotes", SweepFunc(func() int { return 3 }))
	s.Add("ignored", nil)

	require.Equal(t, 5, s.RunNow())
}

func TestRegister_RequiresSweepers(t *testing.T) {
	s := New(nil)
	require.Error(t, s.Register(""))
}

func TestRegister_InvalidSpec(t *testing.T) {
	s := New(nil)
	s.Add("contexts", SweepFunc(func() int { return 0 }))
	err := s.Register("not a cron spec")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a cron spec")
}

func TestRegister_DefaultSpec(t *testing.T) {
	var calls atomic.Int32
	s := New(nil)
	s.Add("contexts", SweepFunc(func() int { calls.Add(1); return 0 }))
	require.NoError(t, s.Register(""))
	require.Len(t, s.cron.Entries(), 1)

	s.Start()
	s.Stop()
	require.Zero(t, calls.Load())
}
