package app

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xr-emulator/panel/internal/client"
	"github.com/xr-emulator/panel/internal/motion"
	"github.com/xr-emulator/panel/internal/theme"
	"github.com/xr-emulator/panel/internal/views/debug"
	"github.com/xr-emulator/panel/internal/views/device"
	"github.com/xr-emulator/panel/internal/views/help"
	"github.com/xr-emulator/panel/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayEvents
)

const (
	moveStep  = 0.05         // meters per key press
	turnStep  = math.Pi / 12 // radians per key press
	stickStep = 0.25
)

type animTickMsg struct{}

type sessionCreatedMsg struct {
	Session *client.Session
	Err     error
}

type sessionEndedMsg struct {
	ID  int
	Err error
}

type sendErrMsg struct{ Err error }

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys    KeyMap
	presets []client.Preset
	width   int
	height  int

	// Device state as last reported by the emulator.
	profile     *client.Profile
	kind        string
	stereo      bool
	controllers []client.Controller
	sessions    map[int]client.Session
	rigs        map[int]*motion.Rig // keyed by slot, device.Headset for the headset
	touching    bool

	selected  int
	overlay   Overlay
	animating bool

	// Sub-views.
	statusBar status.Model
	device    device.Model
	events    debug.Model
	help      *help.Model

	connected bool
}

// New creates the root model. A nil presets slice uses the defaults.
func New(ws *client.WSClient, http *client.HTTPClient, presets []client.Preset) Model {
	if presets == nil {
		presets = client.DefaultPresets
	}
	ctx, cancel := context.WithCancel(context.Background())
	keys := DefaultKeyMap()
	helpView := help.New(keys.HelpBindings(), presets)
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      keys,
		presets:   presets,
		sessions:  make(map[int]client.Session),
		rigs:      map[int]*motion.Rig{device.Headset: motion.NewRig()},
		selected:  device.Headset,
		statusBar: status.New(),
		device:    device.New(),
		events:    debug.New(),
		help:      &helpView,
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.device.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.events.Add(debug.KindTransport, "connected")
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		if msg.Err != nil {
			m.events.Addf(debug.KindTransport, "disconnected: %v", msg.Err)
		}
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		m.applySnapshot(msg.Payload)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSPoseMsg:
		slot := device.Headset
		if msg.Type == client.MsgControllerPoseChanged {
			slot = 1
			if msg.Payload.Controller == client.ControllerPrimary {
				slot = 0
			}
		}
		m.applyPose(slot, client.Pose{Position: msg.Payload.Position, Quaternion: msg.Payload.Quaternion})
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSSessionsMsg:
		for _, s := range msg.Payload.Sessions {
			m.sessions[s.ID] = s
			state := "started"
			if s.Ended {
				state = "ended"
			}
			m.events.Addf(debug.KindSession, "session %d %s %s", s.ID, s.Mode, state)
		}
		m.statusBar.Active = msg.Payload.ActiveCount
		m.syncSessions()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSInputMsg:
		ev := msg.Payload
		if ev.Type == "inputsourceschange" {
			m.events.Addf(debug.KindInput, "session %d %s added %v removed %v", ev.SessionID, ev.Type, ev.Added, ev.Removed)
		} else {
			m.events.Addf(debug.KindInput, "session %d %s %s", ev.SessionID, ev.Type, device.Label(m.kind, ev.Controller))
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSNoticeMsg:
		switch msg.Type {
		case client.MsgEnterImmersive:
			m.statusBar.Immersive++
		case client.MsgLeaveImmersive:
			m.statusBar.Immersive = max(m.statusBar.Immersive-1, 0)
			m.statusBar.AssetWanted = false
		case client.MsgSurfaceAssetRequest:
			m.statusBar.AssetWanted = true
		}
		m.events.Add(debug.KindTransport, string(msg.Type))
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSErrorMsg:
		m.events.Add(debug.KindError, msg.Message)
		return m, m.ws.ReadLoop(m.ctx)

	case animTickMsg:
		return m.stepRigs()

	case sessionCreatedMsg:
		if msg.Err != nil {
			m.events.Addf(debug.KindError, "start session: %v", msg.Err)
			return m, nil
		}
		m.sessions[msg.Session.ID] = *msg.Session
		m.syncSessions()
		return m, nil

	case sessionEndedMsg:
		if msg.Err != nil {
			m.events.Addf(debug.KindError, "end session %d: %v", msg.ID, msg.Err)
		}
		return m, nil

	case sendErrMsg:
		m.events.Addf(debug.KindError, "send: %v", msg.Err)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayEvents && key.Matches(msg, m.keys.ScrollUp):
			m.events.ScrollUp(1)
		case m.overlay == OverlayEvents && key.Matches(msg, m.keys.ScrollDn):
			m.events.ScrollDown(1)
		case m.overlay == OverlayEvents && key.Matches(msg, m.keys.Target):
			m.events.CycleFilter()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Forward):
		return m.nudge(0, 0, -moveStep, 0)
	case key.Matches(msg, m.keys.Back):
		return m.nudge(0, 0, moveStep, 0)
	case key.Matches(msg, m.keys.Left):
		return m.nudge(-moveStep, 0, 0, 0)
	case key.Matches(msg, m.keys.Right):
		return m.nudge(moveStep, 0, 0, 0)
	case key.Matches(msg, m.keys.Up):
		return m.nudge(0, moveStep, 0, 0)
	case key.Matches(msg, m.keys.Down):
		return m.nudge(0, -moveStep, 0, 0)
	case key.Matches(msg, m.keys.TurnL):
		return m.nudge(0, 0, 0, turnStep)
	case key.Matches(msg, m.keys.TurnR):
		return m.nudge(0, 0, 0, -turnStep)

	case key.Matches(msg, m.keys.Target):
		m.selected++
		if m.selected >= len(m.controllers) {
			m.selected = device.Headset
		}
		m.device.Selected = m.selected
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.kind == client.KindPassthrough {
			return m.tap()
		}
		return m.toggleButton(func(c client.Controller) int { return c.PrimaryButtonIndex })

	case key.Matches(msg, m.keys.Squeeze):
		return m.toggleButton(func(c client.Controller) int { return c.PrimarySqueezeButtonIndex })
	case key.Matches(msg, m.keys.StickX):
		return m.moveAxis(0, stickDelta(msg.String(), "]"))
	case key.Matches(msg, m.keys.StickY):
		return m.moveAxis(1, stickDelta(msg.String(), "="))

	case key.Matches(msg, m.keys.Stereo):
		m.stereo = !m.stereo
		m.statusBar.Stereo = m.stereo
		enabled := m.stereo
		return m, m.send(func() error { return m.ws.SendStereo(enabled) })

	case key.Matches(msg, m.keys.Start):
		mode := "inline"
		if m.profile != nil {
			mode = m.profile.ImmersiveMode()
		}
		httpClient, ctx := m.http, m.ctx
		return m, func() tea.Msg {
			s, err := httpClient.CreateSession(ctx, mode, nil)
			return sessionCreatedMsg{Session: s, Err: err}
		}

	case key.Matches(msg, m.keys.End):
		id, ok := m.newestActive()
		if !ok {
			return m, nil
		}
		httpClient, ctx := m.http, m.ctx
		return m, func() tea.Msg {
			return sessionEndedMsg{ID: id, Err: httpClient.EndSession(ctx, id)}
		}

	case key.Matches(msg, m.keys.Preset):
		i, err := strconv.Atoi(msg.String())
		if err != nil || i < 1 || i > len(m.presets) {
			return m, nil
		}
		p := m.presets[i-1]
		m.rigs[device.Headset].MoveTo(p.Position, p.Yaw*math.Pi/180)
		m.events.Addf(debug.KindPanel, "preset %s", p.Name)
		return m, m.animate()

	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

func (m Model) nudge(dx, dy, dz, dyaw float64) (tea.Model, tea.Cmd) {
	rig, ok := m.rigs[m.selected]
	if !ok {
		return m, nil
	}
	rig.Nudge(dx, dy, dz, dyaw)
	return m, m.animate()
}

// animate starts the easing tick unless it is already running.
func (m *Model) animate() tea.Cmd {
	if m.animating {
		return nil
	}
	m.animating = true
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/motion.FPS, func(time.Time) tea.Msg { return animTickMsg{} })
}

func (m Model) stepRigs() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	moving := false
	for slot, rig := range m.rigs {
		if !rig.Step() {
			continue
		}
		pose := rig.Pose()
		m.setDisplayedPose(slot, pose)
		cmds = append(cmds, m.sendPose(slot, pose))
		if !rig.Settled() {
			moving = true
		}
	}
	m.animating = moving
	if moving {
		cmds = append(cmds, tick())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) sendPose(slot int, p client.Pose) tea.Cmd {
	ws := m.ws
	passthrough := m.kind == client.KindPassthrough
	return m.send(func() error {
		switch {
		case slot == device.Headset && passthrough:
			return ws.SendCameraPose(p)
		case slot == device.Headset:
			return ws.SendHeadsetPose(p)
		case slot == 1 && passthrough:
			return ws.SendSurfacePose(p)
		case slot == 1:
			return ws.SendControllerPose(client.ControllerSecondary, p)
		default:
			return ws.SendControllerPose(client.ControllerPrimary, p)
		}
	})
}

func (m Model) send(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return sendErrMsg{Err: err}
		}
		return nil
	}
}

// toggleButton flips a button of the selected controller, or of the
// primary controller while the headset is selected.
func (m Model) toggleButton(index func(client.Controller) int) (tea.Model, tea.Cmd) {
	slot := m.selected
	if slot == device.Headset {
		slot = 0
	}
	if slot >= len(m.controllers) {
		return m, nil
	}
	c := m.controllers[slot]
	button := index(c)
	if button < 0 || button >= len(c.Buttons) {
		return m, nil
	}
	pressed := !c.Pressed(button)
	c.Buttons[button].Pressed = pressed
	m.device.Controllers = m.controllers

	name := controllerName(slot)
	ws := m.ws
	return m, m.send(func() error { return ws.SendButton(name, button, pressed) })
}

// moveAxis steps one thumbstick axis of the selected controller, clamped
// to [-1, 1].
func (m Model) moveAxis(axis int, delta float64) (tea.Model, tea.Cmd) {
	slot := m.selected
	if slot == device.Headset {
		slot = 0
	}
	if slot >= len(m.controllers) {
		return m, nil
	}
	c := &m.controllers[slot]
	value := math.Max(-1, math.Min(1, c.Axes[axis]+delta))
	c.Axes[axis] = value
	m.device.Controllers = m.controllers

	name := controllerName(slot)
	ws := m.ws
	return m, m.send(func() error { return ws.SendAxis(name, axis, value) })
}

func stickDelta(pressed, up string) float64 {
	if pressed == up {
		return stickStep
	}
	return -stickStep
}

func controllerName(slot int) string {
	if slot == 1 {
		return client.ControllerSecondary
	}
	return client.ControllerPrimary
}

// tap touches the handheld surface at its centre, or lifts the pointer off
// it again.
func (m Model) tap() (tea.Model, tea.Cmd) {
	ws := m.ws
	if m.touching {
		m.touching = false
		return m, m.send(ws.Release)
	}
	surface, ok := m.rigs[1]
	if !ok {
		return m, nil
	}
	m.touching = true
	point := surface.Pose().Position
	return m, m.send(func() error { return ws.Touch(point) })
}

func (m *Model) applySnapshot(p client.SnapshotPayload) {
	m.profile = p.Profile
	m.kind = p.Kind
	m.stereo = p.Stereo
	m.controllers = p.Controllers

	for slot := range m.rigs {
		if slot >= len(p.Controllers) {
			delete(m.rigs, slot)
		}
	}
	m.applyPose(device.Headset, p.Headset)
	for i, c := range p.Controllers {
		if _, ok := m.rigs[i]; !ok {
			m.rigs[i] = motion.NewRig()
		}
		m.applyPose(i, c.Pose)
	}
	if m.selected >= len(m.controllers) {
		m.selected = device.Headset
	}

	m.sessions = make(map[int]client.Session)
	active, immersive := 0, 0
	for _, s := range p.Sessions {
		m.sessions[s.ID] = s
		if !s.Ended {
			active++
			if s.Mode != "inline" {
				immersive++
			}
		}
	}

	if p.Profile != nil {
		m.statusBar.Profile = p.Profile.ID
	}
	m.statusBar.Kind = p.Kind
	m.statusBar.Stereo = p.Stereo
	m.statusBar.Clients = p.Clients
	m.statusBar.Active = active
	m.statusBar.Immersive = immersive
	m.device.Kind = p.Kind
	m.device.Controllers = m.controllers
	m.device.Selected = m.selected
	m.syncSessions()
}

// applyPose takes a pose reported by the emulator. A rig that is easing
// keeps its own target.
func (m *Model) applyPose(slot int, p client.Pose) {
	if rig, ok := m.rigs[slot]; ok && rig.Settled() {
		rig.Set(p)
	}
	m.setDisplayedPose(slot, p)
}

func (m *Model) setDisplayedPose(slot int, p client.Pose) {
	if slot == device.Headset {
		m.device.Headset = p
		return
	}
	if slot < len(m.controllers) {
		m.controllers[slot].Pose = p
		m.device.Controllers = m.controllers
	}
}

func (m *Model) syncSessions() {
	ids := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	list := make([]client.Session, len(ids))
	for i, id := range ids {
		list[i] = m.sessions[id]
	}
	m.device.Sessions = list
}

func (m Model) newestActive() (int, bool) {
	best, found := 0, false
	for id, s := range m.sessions {
		if !s.Ended && id > best {
			best, found = id, true
		}
	}
	return best, found
}

// View renders the full panel.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayHelp:
		return m.help.View(m.width)
	case OverlayEvents:
		return m.events.View(m.width, m.height)
	}

	sections := []string{m.statusBar.View()}
	if !m.connected {
		banner := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).
			Render("  DISCONNECTED · Reconnecting...")
		sections = append(sections, banner)
	}
	sections = append(sections,
		m.device.View(),
		theme.StyleDimmed.Render("  wasd/rf:move  q/e:turn  tab:target  space:select  g:squeeze  t:stereo  n/x:session  ?:help"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
