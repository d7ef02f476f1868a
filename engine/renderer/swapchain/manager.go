package swapchain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type State uint8

const (
	StateActive State = iota
	StateRecreating
	StateRetiring
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRecreating:
		return "recreating"
	case StateRetiring:
		return "retiring"
	}
	return "unknown"
}

// Gate is a completion point of GPU work submitted before a recreation.
type Gate interface {
	// Passed reports, without blocking, whether the work completed.
	Passed() bool
	// Wait blocks until the work completed.
	Wait() error
}

/** @brief One swapchain with its image views. */
type Generation struct {
	ID          uuid.UUID
	Handle      metadata.Swapchain
	Views       []metadata.ImageView
	Format      metadata.SurfaceFormat
	Extent      metadata.Extent2D
	PresentMode metadata.PresentMode
}

// RecreationChanges tells dependents what they need to rebuild.
type RecreationChanges struct {
	Format bool
	Extent bool
}

func (c RecreationChanges) Any() bool {
	return c.Format || c.Extent
}

// RetireHook runs right before an old generation is destroyed.
type RetireHook func(old *Generation)

/**
 * @brief Owns the current swapchain generation and at most one retired
 * generation kept alive until the frames that may reference it completed.
 */
type Manager struct {
	dev   metadata.PresentDevice
	prefs Preferences

	state   State
	current *Generation
	old     *Generation
	gates   []Gate
	pending bool
	hooks   []RetireHook
}

func New(dev metadata.PresentDevice, prefs Preferences, window metadata.Extent2D) (*Manager, error) {
	m := &Manager{
		dev:   dev,
		prefs: prefs,
		state: StateActive,
	}
	gen, err := m.create(window, 0)
	if err != nil {
		return nil, err
	}
	m.current = gen
	return m, nil
}

func (m *Manager) create(window metadata.Extent2D, old metadata.Swapchain) (*Generation, error) {
	support, err := m.dev.SurfaceSupport()
	if err != nil {
		return nil, core.ConfigurationError("swapchain.create", err)
	}
	info := CreateInfo(support, m.prefs, window, old)
	if info.Extent.IsZero() {
		return nil, core.TransientError("swapchain.create", core.ErrZeroExtent)
	}
	handle, views, err := m.dev.CreateSwapchain(info)
	if err != nil {
		return nil, core.ConfigurationError("swapchain.create", err)
	}
	gen := &Generation{
		ID:          uuid.New(),
		Handle:      handle,
		Views:       views,
		Format:      info.Format,
		Extent:      info.Extent,
		PresentMode: info.PresentMode,
	}
	core.LogDebug("swapchain %s: %dx%d, %d images, present mode %s",
		gen.ID, gen.Extent.Width, gen.Extent.Height, len(views), gen.PresentMode)
	return gen, nil
}

// OnRetire registers a hook called with every generation being destroyed.
func (m *Manager) OnRetire(hook RetireHook) {
	m.hooks = append(m.hooks, hook)
}

// RequestRecreate marks the swapchain for recreation on the next frame and
// moves the manager to StateRecreating until Recreate succeeds.
func (m *Manager) RequestRecreate() {
	m.pending = true
	m.settle()
}

func (m *Manager) RecreatePending() bool {
	return m.pending
}

// SetPreferences stores the preferences and schedules a recreation when
// they changed.
func (m *Manager) SetPreferences(prefs Preferences) {
	if prefs == m.prefs {
		return
	}
	m.prefs = prefs
	m.RequestRecreate()
}

func (m *Manager) Preferences() Preferences {
	return m.prefs
}

func (m *Manager) State() State {
	return m.state
}

func (m *Manager) Current() *Generation {
	return m.current
}

// Old returns the retired generation, nil when there is none.
func (m *Manager) Old() *Generation {
	return m.old
}

/**
 * @brief Builds a new generation with the current handle as the reuse hint
 * and parks the current one until every gate passed.
 *
 * A generation still waiting for retirement is destroyed first, blocking on
 * its gates if needed, so at most two generations ever exist.
 */
func (m *Manager) Recreate(window metadata.Extent2D, gates ...Gate) (RecreationChanges, error) {
	if m.old != nil {
		for _, g := range m.gates {
			if err := g.Wait(); err != nil {
				return RecreationChanges{}, err
			}
		}
		m.destroyOld()
	}

	m.state = StateRecreating
	gen, err := m.create(window, m.current.Handle)
	if err != nil {
		m.settle()
		return RecreationChanges{}, fmt.Errorf("recreate swapchain: %w", err)
	}

	changes := RecreationChanges{
		Format: gen.Format != m.current.Format,
		Extent: gen.Extent != m.current.Extent,
	}
	m.old = m.current
	m.current = gen
	m.gates = append([]Gate(nil), gates...)
	m.pending = false
	m.settle()

	core.LogInfo("swapchain recreated: %dx%d (format changed: %t, extent changed: %t)",
		gen.Extent.Width, gen.Extent.Height, changes.Format, changes.Extent)
	return changes, nil
}

// TryRetire destroys the old generation once all its gates passed.
func (m *Manager) TryRetire() bool {
	if m.old == nil {
		return false
	}
	for _, g := range m.gates {
		if !g.Passed() {
			return false
		}
	}
	m.destroyOld()
	return true
}

func (m *Manager) destroyOld() {
	if m.old == nil {
		return
	}
	for _, hook := range m.hooks {
		hook(m.old)
	}
	m.dev.DestroySwapchain(m.old.Handle, m.old.Views)
	core.LogDebug("swapchain %s retired", m.old.ID)
	m.old = nil
	m.gates = nil
	m.settle()
}

// settle derives the state: a requested recreation wins over a generation
// waiting for retirement.
func (m *Manager) settle() {
	switch {
	case m.pending:
		m.state = StateRecreating
	case m.old != nil:
		m.state = StateRetiring
	default:
		m.state = StateActive
	}
}

func (m *Manager) Acquire(timeout uint64, signal metadata.Semaphore) (uint32, metadata.Result) {
	return m.dev.AcquireNextImage(m.current.Handle, timeout, signal)
}

func (m *Manager) Present(imageIndex uint32, wait metadata.Semaphore) metadata.Result {
	return m.dev.Present(m.current.Handle, imageIndex, wait)
}

// Destroy releases every generation. The device must be idle.
func (m *Manager) Destroy() {
	m.destroyOld()
	if m.current != nil {
		for _, hook := range m.hooks {
			hook(m.current)
		}
		m.dev.DestroySwapchain(m.current.Handle, m.current.Views)
		m.current = nil
	}
}
