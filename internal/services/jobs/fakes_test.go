package jobs

import (
	"context"
	"os"
	"sync"

	"github.com/ternarybob/reclaim/internal/interfaces"
	"github.com/ternarybob/reclaim/internal/models"
)

// fakeWidget answers every interaction successfully and bumps its message
// count on each one so response waits settle immediately.
type fakeWidget struct {
	mu    sync.Mutex
	count int
	html  string
}

func (f *fakeWidget) bump() { f.count++ }

func (f *fakeWidget) Count(ctx context.Context, sel interfaces.Selector) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeWidget) Click(ctx context.Context, sel interfaces.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump()
	return nil
}

func (f *fakeWidget) Fill(ctx context.Context, sel interfaces.Selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump()
	return nil
}

func (f *fakeWidget) Press(ctx context.Context, sel interfaces.Selector, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump()
	return nil
}

func (f *fakeWidget) VisibleInputs(ctx context.Context) ([]interfaces.InputInfo, error) {
	return nil, nil
}

func (f *fakeWidget) FillInputAt(ctx context.Context, index int, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump()
	return nil
}

func (f *fakeWidget) SelectByText(ctx context.Context, sel interfaces.Selector, contains string) error {
	return nil
}

func (f *fakeWidget) Upload(ctx context.Context, sel interfaces.Selector, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bump()
	return nil
}

func (f *fakeWidget) Text(ctx context.Context, sel interfaces.Selector) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, nil
}

func (f *fakeWidget) HTML(ctx context.Context, sel interfaces.Selector) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, nil
}

type fakeSession struct {
	widget   *fakeWidget
	startErr error
	panics   bool
}

func (s *fakeSession) Start(ctx context.Context) error {
	if s.panics {
		panic("browser exploded")
	}
	return s.startErr
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return nil }
func (s *fakeSession) Page() interfaces.WidgetContext                 { return s.widget }
func (s *fakeSession) WidgetContext(ctx context.Context) (interfaces.WidgetContext, error) {
	return s.widget, nil
}
func (s *fakeSession) Screenshot(ctx context.Context, path string) error {
	return os.WriteFile(path, []byte("png"), 0o644)
}
func (s *fakeSession) Close() error { return nil }

// fakeSessionFactory builds one scripted session per job
type fakeSessionFactory struct {
	mu       sync.Mutex
	html     string
	startErr error
	panics   bool
	created  int
}

func (f *fakeSessionFactory) NewSession(jobID string) (interfaces.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &fakeSession{
		widget:   &fakeWidget{count: 1, html: f.html},
		startErr: f.startErr,
		panics:   f.panics,
	}, nil
}

// fakeResolver hands back no documents and records cleanups
type fakeResolver struct {
	mu       sync.Mutex
	cleaned  []string
	resolved []string
}

func (f *fakeResolver) Resolve(ctx context.Context, jobID string, docs []models.Document) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, jobID)
	return nil
}

func (f *fakeResolver) Cleanup(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, jobID)
}

// fakeNotifier records every delivery instead of making HTTP calls
type fakeNotifier struct {
	mu       sync.Mutex
	steps    []string
	finished []models.JobStatus
}

func (f *fakeNotifier) NotifyStep(ctx context.Context, callbackURL string, job *models.Job, step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
}

func (f *fakeNotifier) NotifyFinished(ctx context.Context, callbackURL string, job *models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, job.Status)
}

func (f *fakeNotifier) finishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finished)
}
