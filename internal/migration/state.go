package migration

// State is a step of the migration pipeline. States are visited strictly in
// declaration order; Aborted is terminal and reachable from any state.
type State int

const (
	StateInit State = iota
	StateVaultsEnsured
	StateLookupTableReady
	StatePoolCreated
	StatePoolLocked
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateVaultsEnsured:
		return "vaults_ensured"
	case StateLookupTableReady:
		return "lookup_table_ready"
	case StatePoolCreated:
		return "pool_created"
	case StatePoolLocked:
		return "pool_locked"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// next returns the state that follows s on success.
func (s State) next() State {
	if s >= StateDone {
		return s
	}
	return s + 1
}
