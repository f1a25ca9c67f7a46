package fusion

import (
	"encoding/json"
	"fmt"
)

// actionKey is the serialized form of an Action inside the table.
func actionKey(a Action) string {
	if !a.Select {
		return "noop"
	}
	return fmt.Sprintf("t%d", a.TargetID)
}

// QTable maps (state, action) to a learned value. It grows lazily; unseen
// pairs are worth 0. The table is owned exclusively by the Agent.
type QTable struct {
	values map[string]map[string]float64
}

// NewQTable creates an empty table.
func NewQTable() *QTable {
	return &QTable{values: make(map[string]map[string]float64)}
}

// Get returns the stored value for (state, action), 0 if unseen.
func (q *QTable) Get(s State, a Action) float64 {
	if row, ok := q.values[s.Key()]; ok {
		return row[actionKey(a)]
	}
	return 0
}

// Set stores a value for (state, action).
func (q *QTable) Set(s State, a Action, v float64) {
	key := s.Key()
	row, ok := q.values[key]
	if !ok {
		row = make(map[string]float64)
		q.values[key] = row
	}
	row[actionKey(a)] = v
}

// MaxValue returns the largest stored value across all actions for a state.
// 0 for a state that has never been visited.
func (q *QTable) MaxValue(s State) float64 {
	row, ok := q.values[s.Key()]
	if !ok {
		return 0
	}
	var best float64
	for _, v := range row {
		if v > best {
			best = v
		}
	}
	return best
}

// Scale multiplies every value stored for the state by factor. Used to keep
// values bounded when learning runs for a long time.
func (q *QTable) Scale(s State, factor float64) {
	for k, v := range q.values[s.Key()] {
		q.values[s.Key()][k] = v * factor
	}
}

// Len returns the number of visited states.
func (q *QTable) Len() int {
	return len(q.values)
}

// MarshalJSON serializes the table as an opaque blob.
func (q *QTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.values)
}

// UnmarshalJSON restores a table serialized by MarshalJSON.
func (q *QTable) UnmarshalJSON(data []byte) error {
	values := make(map[string]map[string]float64)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode q-table: %w", err)
	}
	q.values = values
	return nil
}
