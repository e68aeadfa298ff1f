package gesture

import "time"

// State is the debounced gesture state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateShooting
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateShooting:
		return "shooting"
	case StateCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// StateParams configures the hysteresis of the StateMachine.
type StateParams struct {
	MinArmedFrames      int           `yaml:"min_armed_frames"`
	MinIdleFrames       int           `yaml:"min_idle_frames"`
	ShootCooldown       time.Duration `yaml:"shoot_cooldown"`
	ArmedEnterThreshold float64       `yaml:"armed_enter_threshold"`
	ArmedExitThreshold  float64       `yaml:"armed_exit_threshold"`
	HistorySize         int           `yaml:"history_size"`
}

// DefaultStateParams returns the tuned defaults.
func DefaultStateParams() StateParams {
	return StateParams{
		MinArmedFrames:      1,
		MinIdleFrames:       2,
		ShootCooldown:       300 * time.Millisecond,
		ArmedEnterThreshold: 0.3,
		ArmedExitThreshold:  0.1,
		HistorySize:         7,
	}
}

// Transition is the result of one StateMachine update.
type Transition struct {
	State       State
	ArmedStable bool
	ShootValid  bool
}

// stepInput is what every transition row sees.
type stepInput struct {
	now        time.Time
	armedRaw   bool
	shootRaw   bool
	armedRatio float64
}

// step evaluates one row of the transition table. It mutates the counters
// and returns the next state; pulse is true when the update must report a
// valid shoot regardless of the next state.
type step func(m *StateMachine, in stepInput) (next State, pulse bool)

// transitions is indexed by the current state and evaluated exactly once per update.
var transitions = [...]step{
	StateIdle:     (*StateMachine).stepIdle,
	StateArmed:    (*StateMachine).stepArmed,
	StateShooting: (*StateMachine).stepShooting,
	StateCooldown: (*StateMachine).stepCooldown,
}

// StateMachine debounces raw armed/shoot signals with history-ratio
// hysteresis and a post-shot cooldown.
//
// SHOOTING lasts for exactly one Update: the update that enters it reports
// it, and the next update always moves on to COOLDOWN.
type StateMachine struct {
	params      StateParams
	state       State
	history     *ring[bool]
	lastShoot   time.Time
	armedFrames int
	idleFrames  int
}

// NewStateMachine creates a StateMachine in IDLE.
func NewStateMachine(params StateParams) *StateMachine {
	return &StateMachine{
		params:  params,
		history: newRing[bool](params.HistorySize),
	}
}

// Update feeds one frame's raw signals into the machine. now must come from
// a monotonic clock read once per frame.
func (m *StateMachine) Update(now time.Time, armedRaw, shootRaw bool) Transition {
	m.history.push(armedRaw)

	in := stepInput{
		now:        now,
		armedRaw:   armedRaw,
		shootRaw:   shootRaw,
		armedRatio: m.armedRatio(),
	}

	next, pulse := transitions[m.state](m, in)
	m.state = next

	return Transition{
		State:       next,
		ArmedStable: next != StateIdle,
		ShootValid:  pulse || next == StateShooting,
	}
}

func (m *StateMachine) stepIdle(in stepInput) (State, bool) {
	if !in.armedRaw && in.armedRatio < m.params.ArmedEnterThreshold {
		m.armedFrames = 0
		return StateIdle, false
	}

	m.armedFrames++
	if m.armedFrames < m.params.MinArmedFrames {
		return StateIdle, false
	}

	m.idleFrames = 0
	return StateArmed, false
}

func (m *StateMachine) stepArmed(in stepInput) (State, bool) {
	if in.shootRaw && m.cooldownElapsed(in.now) {
		m.lastShoot = in.now
		return StateShooting, false
	}

	if in.armedRatio >= m.params.ArmedExitThreshold {
		m.idleFrames = 0
		return StateArmed, false
	}

	m.idleFrames++
	if m.idleFrames < m.params.MinIdleFrames {
		return StateArmed, false
	}

	m.armedFrames = 0
	return StateIdle, false
}

func (m *StateMachine) stepShooting(stepInput) (State, bool) {
	return StateCooldown, true
}

func (m *StateMachine) stepCooldown(in stepInput) (State, bool) {
	if !m.cooldownElapsed(in.now) {
		return StateCooldown, false
	}
	if in.armedRatio >= m.params.ArmedExitThreshold {
		return StateArmed, false
	}
	return StateIdle, false
}

func (m *StateMachine) armedRatio() float64 {
	values := m.history.values()
	if len(values) == 0 {
		return 0
	}

	armed := 0
	for _, v := range values {
		if v {
			armed++
		}
	}
	return float64(armed) / float64(len(values))
}

func (m *StateMachine) cooldownElapsed(now time.Time) bool {
	return m.lastShoot.IsZero() || now.Sub(m.lastShoot) > m.params.ShootCooldown
}

// State returns the current state.
func (m *StateMachine) State() State {
	return m.state
}

// LastShoot returns the time of the last accepted shot, zero if none.
func (m *StateMachine) LastShoot() time.Time {
	return m.lastShoot
}

// Reset returns the machine to IDLE and forgets all history.
func (m *StateMachine) Reset() {
	m.state = StateIdle
	m.history.clear()
	m.armedFrames = 0
	m.idleFrames = 0
	m.lastShoot = time.Time{}
}
