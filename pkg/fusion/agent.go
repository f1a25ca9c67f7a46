package fusion

import (
	"encoding/json"
	"math/rand"

	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/input"
)

// Config holds the learning parameters. These are fixed configuration, not
// learned.
type Config struct {
	LearningRate float64 // alpha in the TD update
	Discount     float64 // gamma in the TD update
	Epsilon      float64 // initial exploration probability
	EpsilonDecay float64 // multiplied into epsilon after each update
	EpsilonFloor float64 // exploration never drops below this
	ValueCap     float64 // per-state values are rescaled above this
}

// DefaultConfig returns the recommended learning parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.1,
		Discount:     0.9,
		Epsilon:      0.1,
		EpsilonDecay: 0.995,
		EpsilonFloor: 0.02,
		ValueCap:     5.0,
	}
}

// Agent is the reinforcement-learning fusion policy. It owns the Q-table
// exclusively and decides one Action per tick.
type Agent struct {
	config  Config
	table   *QTable
	epsilon float64
	rng     *rand.Rand
}

// NewAgent creates an agent with an empty table. The rand source is injected
// so tests can make exploration reproducible; nil disables exploration
// entirely (greedy only).
func NewAgent(config Config, rng *rand.Rand) *Agent {
	return &Agent{
		config:  config,
		table:   NewQTable(),
		epsilon: config.Epsilon,
		rng:     rng,
	}
}

// Epsilon returns the current exploration probability.
func (a *Agent) Epsilon() float64 { return a.epsilon }

// Table exposes the Q-table for inspection (dashboard, tests). Callers must
// not mutate it.
func (a *Agent) Table() *QTable { return a.table }

// Select chooses an Action for the state. candidates are the target ids
// whose dwell currently qualifies them for selection, sorted ascending.
//
// With no candidates, or with a neutral joystick, the only sensible action
// is NoOp. Otherwise the choice is epsilon-greedy over SelectTarget(id) for
// each candidate plus NoOp; greedy ties resolve to the lowest target id and
// NoOp loses all ties, so behavior is reproducible.
func (a *Agent) Select(s State, candidates []int) Action {
	if len(candidates) == 0 || s.Direction == input.Neutral {
		return NoOp
	}

	actions := make([]Action, 0, len(candidates)+1)
	for _, id := range candidates {
		actions = append(actions, SelectTarget(id))
	}
	actions = append(actions, NoOp)

	if a.rng != nil && a.rng.Float64() < a.epsilon {
		return actions[a.rng.Intn(len(actions))]
	}

	best := actions[0]
	bestValue := a.table.Get(s, best)
	for _, act := range actions[1:] {
		if v := a.table.Get(s, act); v > bestValue {
			best = act
			bestValue = v
		}
	}
	return best
}

// Update applies the temporal-difference value update for an observed
// transition and decays epsilon. Per-state values are rescaled when the
// maximum grows past the cap so long sessions stay bounded.
func (a *Agent) Update(s State, action Action, reward float64, next State) {
	current := a.table.Get(s, action)
	target := reward + a.config.Discount*a.table.MaxValue(next)
	a.table.Set(s, action, current+a.config.LearningRate*(target-current))

	if max := a.table.MaxValue(s); max > a.config.ValueCap {
		a.table.Scale(s, a.config.ValueCap/max)
	}

	a.decayEpsilon()
}

// decayEpsilon shrinks exploration monotonically toward the floor.
func (a *Agent) decayEpsilon() {
	a.epsilon *= a.config.EpsilonDecay
	if a.epsilon < a.config.EpsilonFloor {
		a.epsilon = a.config.EpsilonFloor
	}
}

// Reset discards the table and restores the initial exploration rate.
func (a *Agent) Reset() {
	a.table = NewQTable()
	a.epsilon = a.config.Epsilon
}

type agentBlob struct {
	Table   *QTable `json:"table"`
	Epsilon float64 `json:"epsilon"`
}

// Snapshot serializes the agent's learned state as an opaque blob.
func (a *Agent) Snapshot() ([]byte, error) {
	return json.Marshal(agentBlob{Table: a.table, Epsilon: a.epsilon})
}

// Restore loads a snapshot. A corrupt or empty blob is not fatal: the agent
// falls back to an empty table and logs the problem.
func (a *Agent) Restore(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	blob := agentBlob{Table: NewQTable()}
	if err := json.Unmarshal(data, &blob); err != nil {
		log.Warn("discarding corrupt policy snapshot", "error", err)
		a.Reset()
		return nil
	}
	// A JSON null table nils the pointer without going through the QTable
	// decoder; treat it like any other corrupt blob.
	if blob.Table == nil || blob.Table.values == nil {
		log.Warn("discarding policy snapshot with no table")
		a.Reset()
		return nil
	}
	a.table = blob.Table
	if blob.Epsilon > 0 {
		a.epsilon = blob.Epsilon
	}
	return nil
}
