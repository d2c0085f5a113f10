package collector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"indexcollector/internal/model"
)

func readySocialSession() *fakeSession {
	return newFakeSession(socialReadySelector, socialInputSelector, socialChartSelector, datePickerSelector)
}

func TestSocialTrendMergesDatedSeries(t *testing.T) {
	sess := readySocialSession()
	sess.evals = []string{
		`{"2025-01-03": "100", "2025-01-04": 110}`,
		`{"2025-01-03": "200"}`,
	}
	src := NewSocialTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	results := src.Collect(context.Background(), testWindow, []string{"甲", "乙"})

	require.Len(t, results, 1)
	r := results[0]
	require.Equal(t, model.SourceSocial, r.Source)
	require.Equal(t, model.MethodPrimary, r.Method)
	require.Equal(t, model.PrimaryPayload{
		"2025-01-03": {"甲": "100", "乙": "200"},
		"2025-01-04": {"甲": "110"},
	}, r.Payload)
	require.Len(t, r.EvidencePaths, 2)
	require.Equal(t, []string{"甲", "乙"}, sess.typed[socialInputSelector])
	require.Equal(t, 1, sess.closed)
}

func TestSocialTrendMixedExtraction(t *testing.T) {
	sess := readySocialSession()
	sess.evals = []string{`[1, 2]`, `null`}
	sess.html = `<span class="index-value">7</span>`
	src := NewSocialTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	r := src.Collect(context.Background(), testWindow, []string{"甲", "乙"})[0]

	require.Equal(t, model.MethodFallback, r.Method)
	require.Equal(t, model.FallbackPayload{
		{Entity: "甲", Raw: "1"},
		{Entity: "甲", Raw: "2"},
		{Entity: "乙", Raw: "7"},
	}, r.Payload)
}

func TestSocialTrendUndatedSeriesIsPositional(t *testing.T) {
	sess := readySocialSession()
	sess.evals = []string{`[1, 2]`, `[3]`}
	src := NewSocialTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	r := src.Collect(context.Background(), testWindow, []string{"甲", "乙"})[0]

	require.Equal(t, model.MethodFallback, r.Method)
	require.Equal(t, model.FallbackPayload{
		{Entity: "甲", Raw: "1"},
		{Entity: "甲", Raw: "2"},
		{Entity: "乙", Raw: "3"},
	}, r.Payload)
}

func TestSocialTrendManualEscalationOnLogin(t *testing.T) {
	sess := readySocialSession()
	sess.location = "https://example.test/auth/qrcode"
	src := NewSocialTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	r := src.Collect(context.Background(), testWindow, []string{"甲", "<乙>"})[0]

	require.Equal(t, model.MethodManual, r.Method)
	require.True(t, r.IsEmpty())
	require.NotEmpty(t, r.Failure)
	require.Len(t, r.EvidencePaths, 1)
	require.Contains(t, r.EvidencePaths[0], "manual_guide")

	require.Contains(t, sess.navigated, "about:blank")
	require.Len(t, sess.execs, 1)
	script := sess.execs[0]
	require.True(t, strings.HasPrefix(script, "document.body.innerHTML = "))
	require.True(t, strings.HasSuffix(script, "; true"))
	require.Contains(t, script, "2025-01-03")
	require.Contains(t, script, "&lt;乙&gt;")
	require.Empty(t, sess.typed[socialInputSelector])
}

func TestSocialTrendManualEscalationOnLoadTimeout(t *testing.T) {
	sess := newFakeSession()
	src := NewSocialTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	r := src.Collect(context.Background(), testWindow, []string{"甲"})[0]

	require.Equal(t, model.MethodManual, r.Method)
	require.Equal(t, 1, sess.closed)
}

func TestSocialTrendInputMissing(t *testing.T) {
	sess := newFakeSession(socialReadySelector)
	src := NewSocialTrend(launcherFor(sess), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	r := src.Collect(context.Background(), testWindow, []string{"甲", "乙", "丙"})[0]

	require.True(t, r.IsEmpty())
	require.Contains(t, r.Failure, "甲, 乙, 丙")
	require.Equal(t, 1, sess.waits[socialInputSelector])
	require.Empty(t, sess.typed[socialInputSelector])
}

func TestSocialTrendLaunchFailure(t *testing.T) {
	src := NewSocialTrend(failingLauncher(), testEvidence(t.TempDir()), "https://social.test", DefaultTimeouts(), testLogger())

	r := src.Collect(context.Background(), testWindow, []string{"甲"})[0]

	require.Equal(t, model.MethodNone, r.Method)
	require.True(t, r.IsEmpty())
	require.Contains(t, r.Failure, "浏览器会话启动失败")
}
