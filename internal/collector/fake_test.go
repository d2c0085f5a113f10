package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"indexcollector/internal/browser"
	"indexcollector/internal/logging"
)

// fakeSession 按预设返回页面行为的会话
type fakeSession struct {
	location  string
	visible   map[string]bool
	clickErrs map[string]error
	evals     []string // 依次返回给 EvaluateJSON
	html      string
	shotErr   error

	navigated []string
	typed     map[string][]string
	clicked   []string
	execs     []string
	waits     map[string]int
	closed    int
}

func newFakeSession(visible ...string) *fakeSession {
	s := &fakeSession{
		location:  "https://example.test/index",
		visible:   map[string]bool{},
		clickErrs: map[string]error{},
		typed:     map[string][]string{},
		waits:     map[string]int{},
	}
	for _, sel := range visible {
		s.visible[sel] = true
	}
	return s
}

func (s *fakeSession) Navigate(url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) Location() (string, error) { return s.location, nil }

func (s *fakeSession) WaitVisible(selector string, _ time.Duration) error {
	s.waits[selector]++
	if s.visible[selector] {
		return nil
	}
	return fmt.Errorf("%s: %w", selector, browser.ErrWaitTimeout)
}

func (s *fakeSession) SendKeys(selector, text string) error {
	s.typed[selector] = append(s.typed[selector], text)
	return nil
}

func (s *fakeSession) Click(selector string) error {
	if err := s.clickErrs[selector]; err != nil {
		return err
	}
	s.clicked = append(s.clicked, selector)
	return nil
}

func (s *fakeSession) EvaluateJSON(string) (string, error) {
	if len(s.evals) == 0 {
		return "null", nil
	}
	v := s.evals[0]
	s.evals = s.evals[1:]
	return v, nil
}

func (s *fakeSession) Exec(script string) error {
	s.execs = append(s.execs, script)
	return nil
}

func (s *fakeSession) HTML() (string, error) { return s.html, nil }

func (s *fakeSession) Screenshot() ([]byte, error) {
	if s.shotErr != nil {
		return nil, s.shotErr
	}
	return []byte("png"), nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func launcherFor(s *fakeSession) browser.Launcher {
	return browser.LauncherFunc(func(context.Context) (browser.Session, error) {
		return s, nil
	})
}

func failingLauncher() browser.Launcher {
	return browser.LauncherFunc(func(context.Context) (browser.Session, error) {
		return nil, errors.New("chrome not found")
	})
}

func testLogger() *slog.Logger { return logging.Discard() }

func testEvidence(dir string) Evidence {
	return Evidence{
		Dir:    dir,
		Prefix: "test",
		Now:    func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local) },
	}
}
