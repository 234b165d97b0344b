package control

import "context"

// StatusInfo is the status snapshot a Controllable reports back over
// the control channel.
type StatusInfo struct {
	Operation string `json:"operation"`
	Paused    bool   `json:"paused"`
	Aborted   bool   `json:"aborted"`
	Processed int64  `json:"processed"`
	Total     int64  `json:"total"`
}

// Controllable is the subset of internal/driver's Job the control
// channel can act on -- kept as an interface here (rather than
// importing internal/driver) so internal/driver depends on
// internal/control, never the reverse.
type Controllable interface {
	Pause()
	Resume()
	Abort()
	Status() StatusInfo
}

// NewHandler builds the JSON-RPC Handler dispatch table for a running
// job, per the pause/resume/abort/status commands.
func NewHandler(job Controllable) Handler {
	return func(ctx context.Context, req Request) Response {
		switch req.Method {
		case "pause":
			job.Pause()
			return Response{Result: "paused"}
		case "resume":
			job.Resume()
			return Response{Result: "resumed"}
		case "abort":
			job.Abort()
			return Response{Result: "aborting"}
		case "status":
			return Response{Result: job.Status()}
		default:
			return Response{Error: "unknown method: " + req.Method}
		}
	}
}
