package pipeline

// State is the orchestrator's position in the cycle.
type State int32

const (
	StateIdle State = iota
	StateBuildingTargets
	StateExtracting
	StateTriaging
	StateCoolingDown
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuildingTargets:
		return "building_targets"
	case StateExtracting:
		return "extracting"
	case StateTriaging:
		return "triaging"
	case StateCoolingDown:
		return "cooling_down"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
