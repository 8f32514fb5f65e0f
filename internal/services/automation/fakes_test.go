package automation

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/ternarybob/reclaim/internal/interfaces"
)

// fakeWidget is a scriptable widget context. Every interaction bumps the
// message count so AwaitChange settles immediately in tests.
type fakeWidget struct {
	mu       sync.Mutex
	count    int
	clickErr error
	fillErr  error
	inputs   []interfaces.InputInfo
	html     string

	clicked []string
	filled  map[string]string
	pressed []string
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{count: 1, filled: make(map[string]string)}
}

func (f *fakeWidget) bump() {
	f.count++
}

func (f *fakeWidget) Count(ctx context.Context, sel interfaces.Selector) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeWidget) Click(ctx context.Context, sel interfaces.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicked = append(f.clicked, sel.Expr)
	f.bump()
	return nil
}

func (f *fakeWidget) Fill(ctx context.Context, sel interfaces.Selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fillErr != nil {
		return f.fillErr
	}
	f.filled[sel.Expr] = value
	f.bump()
	return nil
}

func (f *fakeWidget) Press(ctx context.Context, sel interfaces.Selector, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, key)
	f.bump()
	return nil
}

func (f *fakeWidget) VisibleInputs(ctx context.Context) ([]interfaces.InputInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.InputInfo{}, f.inputs...), nil
}

func (f *fakeWidget) FillInputAt(ctx context.Context, index int, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled["input#"+string(rune('0'+index))] = value
	f.bump()
	return nil
}

func (f *fakeWidget) SelectByText(ctx context.Context, sel interfaces.Selector, contains string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled["select:"+contains] = contains
	return nil
}

func (f *fakeWidget) Upload(ctx context.Context, sel interfaces.Selector, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled["upload"] = strings.Join(paths, ",")
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

func (f *fakeWidget) clickedAny(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clicked {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

// fakeSession satisfies interfaces.Session over a fakeWidget
type fakeSession struct {
	mu          sync.Mutex
	widget      *fakeWidget
	startErr    error
	started     bool
	navigated   string
	screenshots int
	closed      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{widget: newFakeWidget()}
}

func (s *fakeSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = url
	return nil
}

func (s *fakeSession) Page() interfaces.WidgetContext {
	return s.widget
}

func (s *fakeSession) WidgetContext(ctx context.Context) (interfaces.WidgetContext, error) {
	return s.widget, nil
}

func (s *fakeSession) Screenshot(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots++
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
