// events.go defines the event types for extension notifications.
//
// Separated from extension.go to isolate the event system. Events let
// extensions react to documents entering, changing and leaving the store
// without adding a pipeline stage.
//
// Design: Events are fire-and-forget notifications, not approval requests.
// They fire after the pipeline has committed. Anything that must be able
// to refuse an operation belongs in a stage at the matching pipeline point.

package extension

// EventType identifies the kind of event.
type EventType string

const (
	EventDocumentIngest EventType = "document:ingest"
	EventDocumentRemove EventType = "document:remove"
	EventDocumentUpdate EventType = "document:update"
	EventTagAdd         EventType = "tag:add"
	EventTagRemove      EventType = "tag:remove"
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	EventCode() string
}

// DocumentIngestEvent is fired after a revision is stored.
type DocumentIngestEvent struct {
	Code     string
	Rule     int
	Revision int
	User     string
	Filename string
	Mimetype string
	Size     int64
}

func (e DocumentIngestEvent) EventType() EventType { return EventDocumentIngest }
func (e DocumentIngestEvent) EventCode() string    { return e.Code }

// DocumentRemoveEvent is fired after a removal. Revision is 0 when the
// whole document was removed.
type DocumentRemoveEvent struct {
	Code     string
	Revision int
	User     string
}

func (e DocumentRemoveEvent) EventType() EventType { return EventDocumentRemove }
func (e DocumentRemoveEvent) EventCode() string    { return e.Code }

// DocumentUpdateEvent is fired after an update. NewCode is set when the
// document was renamed.
type DocumentUpdateEvent struct {
	Code    string
	NewCode string
	User    string
}

func (e DocumentUpdateEvent) EventType() EventType { return EventDocumentUpdate }
func (e DocumentUpdateEvent) EventCode() string    { return e.Code }

// TagEvent is fired for each tag added or removed by an update.
type TagEvent struct {
	Code  string
	Tag   string
	Added bool // true=added, false=removed
}

func (e TagEvent) EventType() EventType {
	if e.Added {
		return EventTagAdd
	}
	return EventTagRemove
}
func (e TagEvent) EventCode() string { return e.Code }

// EventHandler is implemented by extensions that want notifications.
type EventHandler interface {
	HandleEvent(ctx Context, e Event) error
}
