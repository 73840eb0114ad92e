package model

// MessageError ties a failure to the message it happened on, so batch
// callers can tell which messages were affected.
type MessageError struct {
	ID  string
	Err error
}

func (e *MessageError) Error() string { return "message " + e.ID + ": " + e.Err.Error() }

func (e *MessageError) Unwrap() error { return e.Err }

// FailedMessages returns the IDs of every MessageError found in err's tree.
func FailedMessages(err error) map[string]bool {
	ids := make(map[string]bool)
	collectFailed(err, ids)
	return ids
}

func collectFailed(err error, ids map[string]bool) {
	if err == nil {
		return
	}
	if me, ok := err.(*MessageError); ok {
		ids[me.ID] = true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			collectFailed(e, ids)
		}
	case interface{ Unwrap() error }:
		collectFailed(x.Unwrap(), ids)
	}
}
