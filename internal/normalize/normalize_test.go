package normalize

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"indexcollector/internal/logging"
	"indexcollector/internal/model"
)

var (
	entities = []string{"A", "B", "C"}
	window   = model.Window{
		Start: time.Date(2025, 1, 3, 0, 0, 0, 0, time.Local),
		End:   time.Date(2025, 1, 9, 0, 0, 0, 0, time.Local),
	}
)

func ptr(v float64) *float64 { return &v }

func normalize(raw model.RawSourceResult) []model.Row {
	return New(logging.Discard()).Normalize(raw, window, entities)
}

// valueAt 取出指定日期与实体的值
func valueAt(t *testing.T, rows []model.Row, date, entity string) *float64 {
	t.Helper()
	for _, r := range rows {
		if r.Date.Format(model.DateLayout) == date && r.Entity == entity {
			return r.Value
		}
	}
	t.Fatalf("row %s/%s not found", date, entity)
	return nil
}

func TestNormalizeShapeAndOrder(t *testing.T) {
	for _, payload := range []model.Payload{model.EmptyPayload{}, nil, model.PrimaryPayload{}, model.FallbackPayload{}} {
		rows := normalize(model.RawSourceResult{Source: model.SourceSearch, Payload: payload})
		require.Len(t, rows, 21)

		for i, r := range rows {
			wantDate := window.Start.AddDate(0, 0, i/3)
			require.True(t, r.Date.Equal(wantDate))
			require.Equal(t, wantDate.Weekday(), r.Weekday)
			require.Equal(t, entities[i%3], r.Entity)
			require.Nil(t, r.Value)
		}
	}
}

func TestNormalizePrimaryDateMajor(t *testing.T) {
	rows := normalize(model.RawSourceResult{
		Source: model.SourceSearch,
		Method: model.MethodPrimary,
		Payload: model.PrimaryPayload{
			"2025-01-03": {"A": "1,024", "B": " 12.5 ", "X": "9"},
			"2025/01/05": {"C": "abc"},
			"2024-12-31": {"A": "1"},
		},
	})

	require.Len(t, rows, 21)
	require.Equal(t, ptr(1024), valueAt(t, rows, "2025-01-03", "A"))
	require.Equal(t, ptr(12.5), valueAt(t, rows, "2025-01-03", "B"))
	require.Nil(t, valueAt(t, rows, "2025-01-03", "C"))
	require.Nil(t, valueAt(t, rows, "2025-01-05", "C"))
}

func TestNormalizePrimaryEntityMajor(t *testing.T) {
	rows := normalize(model.RawSourceResult{
		Source: model.SourceSocial,
		Payload: model.PrimaryPayload{
			"A": {"20250104": "７８"},
			"B": {"2025-1-9": "5"},
		},
	})

	require.Equal(t, ptr(78), valueAt(t, rows, "2025-01-04", "A"))
	require.Equal(t, ptr(5), valueAt(t, rows, "2025-01-09", "B"))
}

func TestNormalizeFallbackPositional(t *testing.T) {
	rows := normalize(model.RawSourceResult{
		Source: model.SourceSearch,
		Payload: model.FallbackPayload{
			{Entity: "A", Date: "2025-01-04", Raw: "40"},
			{Entity: "A", Raw: "30"},
			{Entity: "A", Raw: "-"},
			{Entity: "A", Raw: "50"},
			{Entity: "B", Raw: "1"},
			{Entity: "Z", Raw: "2"},
		},
	})

	require.Equal(t, ptr(30), valueAt(t, rows, "2025-01-03", "A"))
	require.Equal(t, ptr(40), valueAt(t, rows, "2025-01-04", "A"))
	require.Nil(t, valueAt(t, rows, "2025-01-05", "A"))
	require.Equal(t, ptr(50), valueAt(t, rows, "2025-01-06", "A"))
	require.Equal(t, ptr(1), valueAt(t, rows, "2025-01-03", "B"))
	require.Nil(t, valueAt(t, rows, "2025-01-03", "C"))
}

func TestNormalizeFallbackOverflow(t *testing.T) {
	var payload model.FallbackPayload
	for i := 0; i < 10; i++ {
		payload = append(payload, model.RawValue{Entity: "C", Raw: "1"})
	}
	rows := normalize(model.RawSourceResult{Source: model.SourceNews, Payload: payload})

	require.Len(t, rows, 21)
	for _, r := range rows {
		if r.Entity == "C" {
			require.Equal(t, ptr(1), r.Value)
		} else {
			require.Nil(t, r.Value)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := model.RawSourceResult{
		Source: model.SourceSearch,
		Payload: model.PrimaryPayload{
			"2025-01-03": {"A": "1", "B": "2"},
			"2025-01-04": {"A": "3"},
		},
	}
	first := normalize(raw)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, normalize(raw)); diff != "" {
			t.Fatalf("normalize not deterministic (-first +got):\n%s", diff)
		}
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
		ok   bool
	}{
		{"1,234", ptr(1234), true},
		{"１２３", ptr(123), true},
		{" 8.5\n", ptr(8.5), true},
		{"1，000", ptr(1000), true},
		{"", nil, true},
		{"-", nil, true},
		{"NaN", nil, false},
		{"Inf", nil, false},
		{"12万", nil, false},
	}
	for _, c := range cases {
		got, ok := ParseValue(c.in)
		require.Equal(t, c.ok, ok, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}
