package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/reclaim/internal/models"
)

func storeClaim() *models.ClaimRequest {
	return &models.ClaimRequest{
		BookingCode:  "EHZRMC",
		BookingEmail: "traveler@example.com",
		Reason:       models.ReasonPregnant,
		FirstName:    "Maria",
		Surname:      "Lopez",
		ContactEmail: "maria@example.com",
		PhoneCountry: "+34",
		PhoneNumber:  "600123456",
	}
}

func timeAgo(d time.Duration) *time.Time {
	t := time.Now().Add(-d)
	return &t
}

func addJob(t *testing.T, s *Store, id string) *models.Job {
	t.Helper()
	claim := storeClaim()
	job := models.NewJob(id, claim)
	s.Add(job, claim)
	return job
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore()
	addJob(t, s, "job-1")

	got, ok := s.Get("job-1")
	require.True(t, ok)

	got.CompletedSteps = append(got.CompletedSteps, "tampered")
	got.Status = models.JobStatusFailed

	fresh, _ := s.Get("job-1")
	assert.Empty(t, fresh.CompletedSteps)
	assert.Equal(t, models.JobStatusQueued, fresh.Status)
}

func TestStoreApplyLifecycle(t *testing.T) {
	s := NewStore()
	addJob(t, s, "job-1")

	running := models.JobStatusRunning
	now := time.Now()
	require.NoError(t, s.Apply("job-1", Update{Status: &running, StartedAt: &now}))

	completed := models.JobStatusCompleted
	caseNum := "9988776"
	require.NoError(t, s.Apply("job-1", Update{
		Status:         &completed,
		CompletedAt:    &now,
		CompletedSteps: []string{models.StepLaunchSession, models.StepNavigate},
		CaseNumber:     &caseNum,
	}))

	job, _ := s.Get("job-1")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "9988776", job.CaseNumber)
	assert.Len(t, job.CompletedSteps, 2)
}

func TestStoreApplyRejectsRegression(t *testing.T) {
	s := NewStore()
	addJob(t, s, "job-1")

	running := models.JobStatusRunning
	require.NoError(t, s.Apply("job-1", Update{Status: &running}))
	failed := models.JobStatusFailed
	require.NoError(t, s.Apply("job-1", Update{Status: &failed}))

	// Terminal is terminal: no resurrection, and the piggybacked fields of
	// a rejected update must not land either.
	queued := models.JobStatusQueued
	err := s.Apply("job-1", Update{Status: &queued, CompletedSteps: []string{"phantom"}})
	require.Error(t, err)
	var invalid *models.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)

	job, _ := s.Get("job-1")
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Empty(t, job.CompletedSteps)
}

func TestStoreApplySkippingQueuedRejected(t *testing.T) {
	s := NewStore()
	addJob(t, s, "job-1")

	completed := models.JobStatusCompleted
	err := s.Apply("job-1", Update{Status: &completed})
	assert.Error(t, err, "queued cannot jump straight to completed")
}

func TestStoreApplyUnknownJob(t *testing.T) {
	s := NewStore()
	running := models.JobStatusRunning
	assert.Error(t, s.Apply("nope", Update{Status: &running}))
}

func TestStoreListNewestFirst(t *testing.T) {
	s := NewStore()
	claim := storeClaim()

	older := models.NewJob("older", claim)
	older.CreatedAt = time.Now().Add(-time.Hour)
	s.Add(older, claim)

	newer := models.NewJob("newer", claim)
	s.Add(newer, claim)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestStoreTerminalBefore(t *testing.T) {
	s := NewStore()
	claim := storeClaim()

	old := models.NewJob("old-done", claim)
	old.Status = models.JobStatusCompleted
	old.CompletedAt = timeAgo(48 * time.Hour)
	s.Add(old, claim)

	recent := models.NewJob("recent-done", claim)
	recent.Status = models.JobStatusFailed
	recent.CompletedAt = timeAgo(0)
	s.Add(recent, claim)

	addJob(t, s, "still-queued")

	expired := s.TerminalBefore(time.Now().Add(-24 * time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, "old-done", expired[0].ID)

	_, removed := s.Remove("old-done")
	assert.True(t, removed)
	assert.Equal(t, 2, s.Count())
	_, ok := s.Claim("old-done")
	assert.False(t, ok)
}
