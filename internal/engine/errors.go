package engine

import "errors"

var (
	// ErrBulkRejected marks the destination's "must include items to add"
	// class of rejection on a bulk create or bulk add. The batch writer
	// treats it as a signal to degrade, never as a fatal failure.
	ErrBulkRejected = errors.New("bulk path rejected")

	// ErrNoItems is returned when a container would be created with nothing
	// in it.
	ErrNoItems = errors.New("no items to add")

	// ErrCreateFailed indicates both creation strategies were rejected for a
	// container. The affected playlist or collection is marked failed and
	// the run continues.
	ErrCreateFailed = errors.New("container create failed")
)
