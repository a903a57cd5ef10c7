package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("Progress", func(t *testing.T) {
		ev := DecodeEvent("PROGRESS:45.2")
		assert.Equal(t, EventProgress, ev.Kind)
		assert.InDelta(t, 45.2, ev.Progress, 1e-9)
	})

	t.Run("ProgressWithSpace", func(t *testing.T) {
		ev := DecodeEvent("PROGRESS: 70")
		assert.Equal(t, EventProgress, ev.Kind)
		assert.InDelta(t, 70, ev.Progress, 1e-9)
	})

	t.Run("MalformedProgressDegradesToLog", func(t *testing.T) {
		ev := DecodeEvent("PROGRESS:fast")
		assert.Equal(t, EventLog, ev.Kind)
		assert.Equal(t, "PROGRESS:fast", ev.Line)
	})

	t.Run("Done", func(t *testing.T) {
		ev := DecodeEvent(`DONE{"days":["Sunday"]}`)
		assert.Equal(t, EventDone, ev.Kind)
		assert.JSONEq(t, `{"days":["Sunday"]}`, string(ev.Payload))
	})

	t.Run("PlainLog", func(t *testing.T) {
		ev := DecodeEvent("placing level L2")
		assert.Equal(t, EventLog, ev.Kind)
		assert.Equal(t, "placing level L2", ev.Line)
	})
}

func TestProgressColor(t *testing.T) {
	cases := []struct {
		percent float64
		want    string
	}{
		{0, "red"},
		{29.9, "red"},
		{30, "orange"},
		{69.9, "orange"},
		{70, "green"},
		{100, "green"},
		{120, "green"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ProgressColor(tc.percent), "percent %v", tc.percent)
	}
}

func TestFilenameFromContentDisposition(t *testing.T) {
	t.Run("EncodedFormPreferred", func(t *testing.T) {
		header := `attachment; filename="fallback.xlsx"; filename*=UTF-8''emploi%20du%20temps.xlsx`
		assert.Equal(t, "emploi du temps.xlsx", FilenameFromContentDisposition(header, "x"))
	})

	t.Run("LegacyQuotedForm", func(t *testing.T) {
		header := `attachment; filename="schedule.pdf"`
		assert.Equal(t, "schedule.pdf", FilenameFromContentDisposition(header, "x"))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		assert.Equal(t, "default.xlsx", FilenameFromContentDisposition("", "default.xlsx"))
	})

	t.Run("UnparseableHeader", func(t *testing.T) {
		assert.Equal(t, "default.xlsx", FilenameFromContentDisposition("attachment", "default.xlsx"))
	})
}
