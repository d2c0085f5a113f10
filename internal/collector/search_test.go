package collector

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"indexcollector/internal/model"
)

var testWindow = model.Window{
	Start: mustDate("2025-01-03"),
	End:   mustDate("2025-01-09"),
}

func mustDate(s string) time.Time {
	v, err := time.ParseInLocation(model.DateLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return v
}

func readySearchSession() *fakeSession {
	return newFakeSession(searchReadySelector, searchInputSelector, searchChartSelector, datePickerSelector)
}

func TestSearchTrendPrimary(t *testing.T) {
	sess := readySearchSession()
	sess.evals = []string{
		`{"2025-01-03":{"甲":"10","乙":"20"}}`,
		`{"2025-01-03":{"甲":"1"}}`,
	}
	dir := t.TempDir()
	src := NewSearchTrend(launcherFor(sess), testEvidence(dir), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲", "乙"})

	require.Len(t, results, 2)
	require.Equal(t, model.SourceSearch, results[0].Source)
	require.Equal(t, model.MethodPrimary, results[0].Method)
	require.Equal(t, model.PrimaryPayload{"2025-01-03": {"甲": "10", "乙": "20"}}, results[0].Payload)
	require.Len(t, results[0].EvidencePaths, 1)
	require.FileExists(t, results[0].EvidencePaths[0])

	require.Equal(t, model.SourceNews, results[1].Source)
	require.Equal(t, model.MethodPrimary, results[1].Method)
	require.Len(t, results[1].EvidencePaths, 1)

	require.Equal(t, []string{"甲,乙"}, sess.typed[searchInputSelector])
	require.Equal(t, []string{"2025-01-03"}, sess.typed[startDateSelector])
	require.Equal(t, []string{"2025-01-09"}, sess.typed[endDateSelector])
	require.Equal(t, 1, sess.closed)
}

func TestSearchTrendFallbackToElements(t *testing.T) {
	sess := readySearchSession()
	sess.html = `<div class="index-data-item" data-keyword="甲">5</div>`
	src := NewSearchTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.Equal(t, model.MethodFallback, results[0].Method)
	require.Equal(t, model.FallbackPayload{{Entity: "甲", Raw: "5"}}, results[0].Payload)
}

func TestSearchTrendEmptyPage(t *testing.T) {
	sess := readySearchSession()
	src := NewSearchTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	for _, r := range results {
		require.True(t, r.IsEmpty())
		require.Equal(t, model.MethodFallback, r.Method)
		require.Empty(t, r.Failure)
	}
}

func TestSearchTrendDatePickerMissingIsNotFatal(t *testing.T) {
	sess := newFakeSession(searchReadySelector, searchInputSelector)
	sess.evals = []string{`{"2025-01-03":{"甲":"10"}}`}
	src := NewSearchTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.Equal(t, model.MethodPrimary, results[0].Method)
	require.Empty(t, sess.typed[startDateSelector])
}

func TestSearchTrendInputTimeout(t *testing.T) {
	sess := newFakeSession(searchReadySelector)
	src := NewSearchTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.IsEmpty())
		require.Equal(t, model.MethodNone, r.Method)
		require.Contains(t, r.Failure, "页面控件等待超时")
	}
	require.Equal(t, 1, sess.closed)
}

func TestSearchTrendLoginRedirect(t *testing.T) {
	sess := readySearchSession()
	sess.location = "https://passport.example.test/login?next=index"
	src := NewSearchTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.Contains(t, results[0].Failure, "需要登录")
	require.Empty(t, sess.typed[searchInputSelector])
}

func TestSearchTrendNewsTabFailure(t *testing.T) {
	sess := readySearchSession()
	sess.evals = []string{`{"2025-01-03":{"甲":"10"}}`}
	sess.clickErrs[searchNewsTabSelector] = errors.New("no such element")
	src := NewSearchTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.False(t, results[0].IsEmpty())
	require.True(t, results[1].IsEmpty())
	require.NotEmpty(t, results[1].Failure)
}

func TestSearchTrendLaunchFailure(t *testing.T) {
	src := NewSearchTrend(failingLauncher(), testEvidence(t.TempDir()), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.Len(t, results, 2)
	require.Equal(t, model.MethodNone, results[0].Method)
	require.Contains(t, results[0].Failure, "浏览器会话启动失败")
}

func TestSearchTrendScreenshotFailureOmitsPath(t *testing.T) {
	sess := readySearchSession()
	sess.shotErr = errors.New("capture failed")
	sess.evals = []string{`{"2025-01-03":{"甲":"10"}}`}
	dir := t.TempDir()
	src := NewSearchTrend(launcherFor(sess), testEvidence(dir), "https://search.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲"})

	require.Equal(t, model.MethodPrimary, results[0].Method)
	require.Empty(t, results[0].EvidencePaths)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
