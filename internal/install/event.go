package install

// Stage is a state of an install run.
type Stage string

// Install states in order of progress.
const (
	StageIdle          Stage = "idle"
	StageResolvingPath Stage = "resolving-path"
	StageStaging       Stage = "staging"
	StageDownloading   Stage = "downloading"
	StageApplying      Stage = "applying"
	StageValidating    Stage = "validating"
	StageFinalizing    Stage = "finalizing"
	StageCommitted     Stage = "committed"
	StageRollingBack   Stage = "rolling-back"
	StageFailed        Stage = "failed"
)

func (s Stage) String() string {
	return string(s)
}

// Event is one progress milestone. Percent is negative when unknown.
type Event struct {
	Stage   Stage
	Message string
	Percent float64
}

// ProgressFunc receives events synchronously and must not block.
type ProgressFunc func(Event)

// downloadMilestones emits an event each time a download crosses a quarter.
type downloadMilestones struct {
	emit    func(Event)
	message string
	next    int
}

func (m *downloadMilestones) observe(received, total int64) {
	if total <= 0 {
		return
	}

	pct := int(received * 100 / total)

	for m.next <= 100 && pct >= m.next {
		if m.next > 0 {
			m.emit(Event{Stage: StageDownloading, Message: m.message, Percent: float64(m.next)})
		}

		m.next += 25
	}
}
