package jobs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
)

// Janitor is the housekeeping loop: on a cron schedule it drops terminal
// job records past their retention TTL and removes their evidence
// directories, plus any evidence directory that no longer has a record.
type Janitor struct {
	cfg   *common.Config
	store *Store
	log   arbor.ILogger
	cron  *cron.Cron
}

// NewJanitor creates the retention janitor
func NewJanitor(cfg *common.Config, store *Store, log arbor.ILogger) *Janitor {
	return &Janitor{
		cfg:   cfg,
		store: store,
		log:   log,
		cron:  cron.New(cron.WithSeconds()),
	}
}

// Start schedules the sweep. Disabled retention means no cron entry at all.
func (j *Janitor) Start() error {
	if !j.cfg.Retention.Enabled {
		j.log.Info().Msg("Retention janitor disabled")
		return nil
	}

	if _, err := j.cron.AddFunc(j.cfg.Retention.Schedule, j.Sweep); err != nil {
		return err
	}
	j.cron.Start()

	j.log.Info().
		Str("schedule", j.cfg.Retention.Schedule).
		Str("ttl", j.cfg.Retention.TTL).
		Msg("Retention janitor started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep performs one retention pass
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.cfg.RetentionTTL())
	expired := j.store.TerminalBefore(cutoff)

	removed := 0
	for _, job := range expired {
		if _, ok := j.store.Remove(job.ID); ok {
			j.removeEvidenceDir(job.ID)
			removed++
		}
	}

	j.sweepOrphanedEvidence()

	if removed > 0 {
		j.log.Info().
			Int("removed", removed).
			Int("remaining", j.store.Count()).
			Msg("Retention sweep removed expired jobs")
	}
}

func (j *Janitor) removeEvidenceDir(jobID string) {
	dir := filepath.Join(j.cfg.Automation.EvidenceDir, jobID)
	if err := os.RemoveAll(dir); err != nil {
		j.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to remove evidence directory")
	}
}

// sweepOrphanedEvidence removes evidence directories whose job record is
// gone, e.g. after a restart cleared the in-memory store.
func (j *Janitor) sweepOrphanedEvidence() {
	entries, err := os.ReadDir(j.cfg.Automation.EvidenceDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := j.store.Get(entry.Name()); !ok {
			j.removeEvidenceDir(entry.Name())
		}
	}
}
