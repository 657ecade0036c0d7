package registry

import (
	"time"

	"github.com/Sumatoshi-tech/jig/pkg/persist"
)

const stateBasename = "state"

// State is what jig remembers about a repository between runs.
type State struct {
	LastCheckedForUpdates time.Time `json:"last_checked_for_updates"`
}

// StateStore reads and writes .jig/state.json.
type StateStore struct {
	dir       string
	persister *persist.Persister[State]
}

// NewStateStore returns the store for repo.
func NewStateStore(repo string) *StateStore {
	return &StateStore{
		dir:       Dir(repo),
		persister: persist.NewPersister[State](stateBasename, persist.NewJSONCodec()),
	}
}

// Load returns the stored state. A repository that was never checked
// reports the Unix epoch.
func (s *StateStore) Load() (State, error) {
	state, found, err := s.persister.Load(s.dir)
	if err != nil {
		return State{}, err
	}

	if !found || state.LastCheckedForUpdates.IsZero() {
		state.LastCheckedForUpdates = time.Unix(0, 0).UTC()
	}

	return state, nil
}

// Save replaces the stored state.
func (s *StateStore) Save(state State) error {
	return s.persister.Save(s.dir, &state)
}

// LastChecked implements the update gate's state source.
func (s *StateStore) LastChecked() (time.Time, error) {
	state, err := s.Load()

	return state.LastCheckedForUpdates, err
}

// SetLastChecked records t as the last update check.
func (s *StateStore) SetLastChecked(t time.Time) error {
	state, err := s.Load()
	if err != nil {
		return err
	}

	state.LastCheckedForUpdates = t

	return s.Save(state)
}
