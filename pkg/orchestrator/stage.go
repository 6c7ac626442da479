// pkg/orchestrator/stage.go

package orchestrator

import "time"

// Stage is a step of the update pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageValidatingPaths
	StageSyncingRepos
	StageRunningExternalTools
	StagePackingArtifacts
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageValidatingPaths:
		return "ValidatingPaths"
	case StageSyncingRepos:
		return "SyncingRepos"
	case StageRunningExternalTools:
		return "RunningExternalTools"
	case StagePackingArtifacts:
		return "PackingArtifacts"
	case StageDone:
		return "Done"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// progress is the share of one source's work completed on entering a stage.
func (s Stage) progress() int {
	switch s {
	case StageSyncingRepos:
		return 10
	case StageRunningExternalTools:
		return 40
	case StagePackingArtifacts:
		return 70
	case StageDone, StageFailed:
		return 100
	default:
		return 0
	}
}

// Event is one progress notification from a running Task.
type Event struct {
	RunID   string
	Source  string // empty for run-wide events
	Stage   Stage
	Percent int // whole run, 0-100
	Message string
	Time    time.Time
}

// target state tokens
const (
	tokenIdle int32 = iota
	tokenRunning
)
