package warehouse

import (
	"context"
	"strings"
	"testing"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

func TestSeriesKey(t *testing.T) {
	t.Parallel()

	if got := SeriesKey(42, "fuel_level", SourceInput); got != "42:input:fuel_level" {
		t.Errorf("SeriesKey = %q", got)
	}
	if got := SeriesKey(7, "speed", SourceTracking); got != "7:tracking:speed" {
		t.Errorf("SeriesKey = %q", got)
	}
}

func TestPairValues(t *testing.T) {
	t.Parallel()

	clause, args := pairValues([]Pair{
		{DeviceID: 1, Label: "fuel"},
		{DeviceID: 2, Label: "rpm"},
	})
	want := "($1::bigint, $2::text), ($3::bigint, $4::text)"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 4 || args[0] != int64(1) || args[1] != "fuel" || args[2] != int64(2) || args[3] != "rpm" {
		t.Errorf("args = %v", args)
	}
}

func TestSplitPairs(t *testing.T) {
	t.Parallel()

	inputs, states, trackingByCol, colOrder := splitPairs([]Pair{
		{DeviceID: 1, Label: "fuel", Source: ""},
		{DeviceID: 1, Label: "door", Source: "state"},
		{DeviceID: 1, Label: "speed", Source: "tracking"},
		{DeviceID: 2, Label: "speed", Source: "Tracking"},
		{DeviceID: 1, Label: "speed", Source: "tracking"}, // duplicate device
		{DeviceID: 2, Label: "hdop", Source: "tracking"},
		{DeviceID: 3, Label: "not_a_column", Source: "tracking"}, // dropped
		{DeviceID: 4, Label: "rpm", Source: "garbage"},           // treated as input
	})

	if len(inputs) != 2 {
		t.Errorf("inputs = %v", inputs)
	}
	if len(states) != 1 || states[0].Label != "door" {
		t.Errorf("states = %v", states)
	}
	if len(colOrder) != 2 || colOrder[0] != "speed" || colOrder[1] != "hdop" {
		t.Errorf("colOrder = %v", colOrder)
	}
	if got := trackingByCol["speed"]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("speed devices = %v, want deduplicated [1 2]", got)
	}
	if got := trackingByCol["hdop"]; len(got) != 1 || got[0] != 2 {
		t.Errorf("hdop devices = %v", got)
	}
	if _, ok := trackingByCol["not_a_column"]; ok {
		t.Error("non-whitelisted tracking label must be dropped")
	}
}

func TestBucketExpr(t *testing.T) {
	t.Parallel()

	ts := &Conn{hasTimeBucket: true}
	if got := ts.bucketExpr("i.device_time"); got != "time_bucket('1 minute', i.device_time)" {
		t.Errorf("timescale bucket = %q", got)
	}
	plain := &Conn{}
	if got := plain.bucketExpr("i.device_time"); got != "date_trunc('minute', i.device_time)" {
		t.Errorf("fallback bucket = %q", got)
	}
}

func TestBatchShortCircuitOnEmptyPairs(t *testing.T) {
	t.Parallel()

	// No database behind this Conn: an empty batch must not touch it.
	c := &Conn{}
	ctx := context.Background()

	series, err := c.BatchRecent(ctx, nil)
	if err != nil || len(series) != 0 {
		t.Errorf("BatchRecent(nil) = %v, %v", series, err)
	}
	values, err := c.BatchLatest(ctx, []Pair{})
	if err != nil || len(values) != 0 {
		t.Errorf("BatchLatest(empty) = %v, %v", values, err)
	}
}

func TestHistoryValidation(t *testing.T) {
	t.Parallel()

	c := &Conn{}
	ctx := context.Background()

	for _, hours := range []int{0, 2, 3, 6, 8, 48, -1} {
		_, err := c.History(ctx, 1, "fuel", SourceInput, hours)
		if apperr.KindOf(err) != apperr.InvalidInput {
			t.Errorf("History(hours=%d) kind = %v, want InvalidInput", hours, apperr.KindOf(err))
		}
	}

	_, err := c.History(ctx, 1, "no_such_column", SourceTracking, 1)
	if apperr.KindOf(err) != apperr.InvalidInput {
		t.Errorf("tracking with bad label kind = %v, want InvalidInput", apperr.KindOf(err))
	}
	if err != nil && !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("unexpected message: %v", err)
	}
}
