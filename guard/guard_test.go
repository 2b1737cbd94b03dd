package guard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed_RequiresBothFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enabled bool
		armed   bool
		want    bool
		reason  string
	}{
		{"both off", false, false, false, "backend execution is disabled"},
		{"armed only", false, true, false, "backend execution is disabled"},
		{"enabled only", true, false, false, "ui is not armed"},
		{"both on", true, true, true, "execution authorized"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New(tt.enabled)
			g.SetArmed(tt.armed)

			ok, reason := g.Allowed(false)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestAllowed_CallOverrideArmsSingleCall(t *testing.T) {
	t.Parallel()

	g := New(true)

	// A true override authorizes this call without touching stored state.
	ok, _ := g.Allowed(true)
	assert.True(t, ok)
	assert.False(t, g.Armed())

	// A false override falls back to the stored flag.
	ok, _ = g.Allowed(false)
	assert.False(t, ok)

	g.SetArmed(true)
	ok, _ = g.Allowed(false)
	assert.True(t, ok)
}

func TestAllowed_OverrideNeverBeatsDisabledBackend(t *testing.T) {
	t.Parallel()

	g := New(false)
	g.SetArmed(true)

	ok, reason := g.Allowed(true)
	assert.False(t, ok)
	assert.Equal(t, "backend execution is disabled", reason)
}

func TestSetters_LastWriteWins(t *testing.T) {
	t.Parallel()

	g := New(false)

	g.SetBackendEnabled(true)
	assert.True(t, g.BackendEnabled())
	g.SetBackendEnabled(false)
	assert.False(t, g.BackendEnabled())

	g.SetArmed(true)
	assert.True(t, g.Armed())
	g.SetArmed(false)
	assert.False(t, g.Armed())
}

func TestGuard_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	g := New(true)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(armed bool) {
			defer wg.Done()
			g.SetArmed(armed)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			g.Allowed(false)
		}()
	}
	wg.Wait()

	// Final state is one of the written values; the point is no race.
	_, reason := g.Allowed(false)
	assert.NotEmpty(t, reason)
}
