package warehouse

import "strings"

// Source kinds for telemetry series. Inputs and states carry a name column;
// tracking values live in fixed columns of the core tracking table.
const (
	SourceInput    = "input"
	SourceState    = "state"
	SourceTracking = "tracking"
)

// trackingSignals are the tracking table columns that may be queried by name.
// Column names are interpolated into SQL, so everything outside this list is
// rejected before query building.
var trackingSignals = []string{
	"latitude", "longitude", "speed", "altitude", "satellites", "hdop", "gps_fix_type", "event_id",
}

var trackingSignalSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(trackingSignals))
	for _, s := range trackingSignals {
		set[s] = struct{}{}
	}
	return set
}()

// TrackingSignals returns the queryable tracking column names in stable order.
func TrackingSignals() []string {
	out := make([]string, len(trackingSignals))
	copy(out, trackingSignals)
	return out
}

// IsTrackingSignal reports whether a label is a whitelisted tracking column.
func IsTrackingSignal(label string) bool {
	_, ok := trackingSignalSet[label]
	return ok
}

// NormalizeSource folds a client-supplied source kind onto the known set.
// Unknown or empty kinds fall back to "input".
func NormalizeSource(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceState:
		return SourceState
	case SourceTracking:
		return SourceTracking
	default:
		return SourceInput
	}
}
