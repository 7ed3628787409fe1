// Package progress carries pipeline progress to whoever is watching: an SSE
// stream, a NATS subject, a terminal.
package progress

// Stages reported by the indexing pipeline.
const (
	StageParsing  = "parsing"
	StageParsed   = "parsed"
	StageLabeling = "labeling"
	StageComplete = "complete"
	StageError    = "error"
)

// Event is one progress observation.
type Event struct {
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Reporter receives progress events. Implementations must not block for long;
// the pipeline calls Report inline.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// Multi fans out each event to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return ReporterFunc(func(e Event) {
		for _, r := range rs {
			r.Report(e)
		}
	})
}

// OrDiscard returns r, or Discard when r is nil.
func OrDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}
