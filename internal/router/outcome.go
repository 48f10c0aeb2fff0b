package router

import "feedflow/models"

// Outcome classifies what the router did with one frame.
type Outcome int

const (
	// Delivered means a record was appended to a destination buffer.
	Delivered Outcome = iota
	// Skipped means the frame was well formed but carried no data: a control
	// message, a missing required field or a destination with no sink.
	Skipped
	// Malformed means the frame shape or channel tag was not understood.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Skipped:
		return "skipped"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result is the classification of one frame.
type Result struct {
	Outcome     Outcome
	Destination models.Destination
	Channel     string
	Reason      string
}

func delivered(channel string, d models.Destination) Result {
	return Result{Outcome: Delivered, Destination: d, Channel: channel}
}

func skipped(channel string, d models.Destination, reason string) Result {
	return Result{Outcome: Skipped, Destination: d, Channel: channel, Reason: reason}
}

func malformed(channel, reason string) Result {
	return Result{Outcome: Malformed, Channel: channel, Reason: reason}
}
