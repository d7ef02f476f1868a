package swapchain

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gputest"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gate struct {
	passed bool
	waits  int
	err    error
}

func (g *gate) Passed() bool { return g.passed }

func (g *gate) Wait() error {
	g.waits++
	if g.err != nil {
		return g.err
	}
	g.passed = true
	return nil
}

func TestChooseSurfaceFormat(t *testing.T) {
	prefs := DefaultPreferences()
	formats := gputest.DefaultSupport(1, 1).Formats

	assert.Equal(t, prefs.Format, ChooseSurfaceFormat(formats, prefs.Format))
	assert.Equal(t, formats[0], ChooseSurfaceFormat(formats[:1], prefs.Format))
	assert.Equal(t, prefs.Format, ChooseSurfaceFormat(nil, prefs.Format))
	assert.Equal(t, prefs.Format, ChooseSurfaceFormat([]metadata.SurfaceFormat{{Format: metadata.FormatUndefined}}, prefs.Format))
}

func TestChoosePresentMode(t *testing.T) {
	all := []metadata.PresentMode{metadata.PresentModeImmediate, metadata.PresentModeMailbox, metadata.PresentModeFifo, metadata.PresentModeFifoRelaxed}
	tests := []struct {
		name  string
		modes []metadata.PresentMode
		vsync bool
		want  metadata.PresentMode
	}{
		{"vsync prefers relaxed", all, true, metadata.PresentModeFifoRelaxed},
		{"vsync falls back to fifo", []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox}, true, metadata.PresentModeFifo},
		{"no vsync prefers mailbox", all, false, metadata.PresentModeMailbox},
		{"no vsync then immediate", []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeImmediate}, false, metadata.PresentModeImmediate},
		{"no vsync fifo only", []metadata.PresentMode{metadata.PresentModeFifo}, false, metadata.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChoosePresentMode(tt.modes, tt.vsync))
		})
	}
}

func TestChooseExtentAndImageCount(t *testing.T) {
	caps := gputest.DefaultSupport(640, 480).Capabilities
	assert.Equal(t, metadata.Extent2D{Width: 640, Height: 480}, ChooseExtent(caps, metadata.Extent2D{Width: 10, Height: 10}))

	caps.CurrentExtent = metadata.Extent2D{Width: gomath.MaxUint32, Height: gomath.MaxUint32}
	assert.Equal(t, metadata.Extent2D{Width: 4096, Height: 300}, ChooseExtent(caps, metadata.Extent2D{Width: 9000, Height: 300}))
	assert.Equal(t, metadata.Extent2D{Width: 1, Height: 1}, ChooseExtent(caps, metadata.Extent2D{}))

	assert.Equal(t, uint32(3), ChooseImageCount(caps))
	caps.MaxImageCount = 2
	assert.Equal(t, uint32(2), ChooseImageCount(caps))
	caps.MaxImageCount = 0
	assert.Equal(t, uint32(3), ChooseImageCount(caps), "zero means no upper limit")
}

func newManager(t *testing.T, dev *gputest.Device) *Manager {
	t.Helper()
	m, err := New(dev, DefaultPreferences(), metadata.Extent2D{Width: 800, Height: 600})
	require.NoError(t, err)
	return m
}

func TestRecreateWithoutChanges(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)
	first := m.Current()

	changes, err := m.Recreate(metadata.Extent2D{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.Equal(t, RecreationChanges{}, changes)
	assert.False(t, changes.Any())
	assert.NotEqual(t, first.ID, m.Current().ID)
	assert.Equal(t, first.Handle, dev.LastSwapchainInfo.OldSwapchain, "the old handle is passed as a reuse hint")
}

func TestRecreateReportsExtentChange(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)

	dev.SetExtent(1024, 768)
	changes, err := m.Recreate(metadata.Extent2D{Width: 1024, Height: 768})
	require.NoError(t, err)
	assert.True(t, changes.Extent)
	assert.False(t, changes.Format)
	assert.Equal(t, metadata.Extent2D{Width: 1024, Height: 768}, m.Current().Extent)
}

func TestOldGenerationWaitsForGates(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)

	var retired []*Generation
	m.OnRetire(func(old *Generation) { retired = append(retired, old) })

	first := m.Current()
	g := &gate{}
	m.RequestRecreate()
	require.True(t, m.RecreatePending())
	_, err := m.Recreate(metadata.Extent2D{Width: 800, Height: 600}, g)
	require.NoError(t, err)
	assert.False(t, m.RecreatePending())
	assert.Equal(t, StateRetiring, m.State())
	assert.Same(t, first, m.Old())
	assert.Equal(t, 2, dev.Live()["swapchain"])

	assert.False(t, m.TryRetire())
	assert.Empty(t, retired)

	g.passed = true
	assert.True(t, m.TryRetire())
	assert.Equal(t, StateActive, m.State())
	assert.Nil(t, m.Old())
	require.Len(t, retired, 1)
	assert.Same(t, first, retired[0])
	assert.Equal(t, 1, dev.Live()["swapchain"])
	assert.False(t, m.TryRetire())
	assert.Empty(t, dev.Violations())
}

func TestStateFollowsRequests(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)
	assert.Equal(t, StateActive, m.State())

	m.RequestRecreate()
	assert.Equal(t, StateRecreating, m.State())

	dev.SetExtent(0, 0)
	_, err := m.Recreate(metadata.Extent2D{})
	require.Error(t, err)
	assert.Equal(t, StateRecreating, m.State(), "a failed recreation stays requested")

	dev.SetExtent(800, 600)
	g := &gate{}
	_, err = m.Recreate(metadata.Extent2D{Width: 800, Height: 600}, g)
	require.NoError(t, err)
	assert.Equal(t, StateRetiring, m.State())

	// resized again before the old generation could go
	m.RequestRecreate()
	assert.Equal(t, StateRecreating, m.State())
	g.passed = true
	assert.True(t, m.TryRetire())
	assert.Equal(t, StateRecreating, m.State())
	assert.True(t, m.RecreatePending())

	_, err = m.Recreate(metadata.Extent2D{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.Equal(t, StateRetiring, m.State())
	assert.True(t, m.TryRetire())
	assert.Equal(t, StateActive, m.State())
	assert.Empty(t, dev.Violations())
}

func TestBackToBackRecreateKeepsTwoGenerations(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)

	g := &gate{}
	_, err := m.Recreate(metadata.Extent2D{Width: 800, Height: 600}, g)
	require.NoError(t, err)
	_, err = m.Recreate(metadata.Extent2D{Width: 800, Height: 600}, &gate{})
	require.NoError(t, err)

	assert.Equal(t, 1, g.waits, "the pending generation blocks on its gates before it is destroyed")
	assert.Equal(t, 2, dev.Live()["swapchain"])
	assert.Empty(t, dev.Violations())
}

func TestRecreateGateFailure(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)

	boom := errors.New("device lost")
	_, err := m.Recreate(metadata.Extent2D{Width: 800, Height: 600}, &gate{err: boom})
	require.NoError(t, err)
	_, err = m.Recreate(metadata.Extent2D{Width: 800, Height: 600})
	assert.ErrorIs(t, err, boom)
}

func TestZeroExtentIsTransient(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)
	current := m.Current()

	dev.SetExtent(0, 0)
	_, err := m.Recreate(metadata.Extent2D{})
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
	assert.ErrorIs(t, err, core.ErrZeroExtent)
	assert.Same(t, current, m.Current())
	assert.Equal(t, StateActive, m.State())
}

func TestSetPreferencesSchedulesRecreate(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)
	assert.Equal(t, metadata.PresentModeFifo, m.Current().PresentMode)

	m.SetPreferences(DefaultPreferences())
	assert.False(t, m.RecreatePending())

	prefs := DefaultPreferences()
	prefs.VSync = false
	m.SetPreferences(prefs)
	assert.True(t, m.RecreatePending())
	assert.False(t, m.Preferences().VSync)

	_, err := m.Recreate(metadata.Extent2D{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.Equal(t, metadata.PresentModeMailbox, m.Current().PresentMode)
}

func TestDestroyReleasesEveryGeneration(t *testing.T) {
	dev := gputest.New()
	m := newManager(t, dev)
	_, err := m.Recreate(metadata.Extent2D{Width: 800, Height: 600}, &gate{})
	require.NoError(t, err)

	hooks := 0
	m.OnRetire(func(*Generation) { hooks++ })
	m.Destroy()
	assert.Equal(t, 2, hooks)
	assert.Zero(t, dev.Live()["swapchain"])
	assert.Zero(t, dev.Live()["imageView"])
	assert.Empty(t, dev.Violations())
}
