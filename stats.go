package matomo

import (
	"time"

	"github.com/jkbrsn/taskman"
	"github.com/rs/zerolog/log"
)

// statsTask is a taskman.Task that logs the dispatcher's counters.
type statsTask struct {
	d *dispatcher
}

// Execute logs the current dispatch totals.
func (t statsTask) Execute() error {
	sent, failed, dropped := t.d.counters()
	log.Info().
		Int64("sent", sent).
		Int64("failed", failed).
		Int64("dropped", dropped).
		Msg("Tracking dispatch stats")
	return nil
}

// scheduleStatsJob registers the periodic stats log on the task manager.
func scheduleStatsJob(tm *taskman.TaskManager, d *dispatcher, cadence time.Duration) error {
	job := taskman.Job{
		ID:       "matomo-dispatch-stats",
		Cadence:  cadence,
		NextExec: time.Now().Add(cadence),
		Tasks:    []taskman.Task{statsTask{d: d}},
	}
	return tm.ScheduleJob(job)
}
