package realtime

import "github.com/shinyyama/rental-backend/internal/model"

const (
	FrameMessage = "message"
	FrameStatus  = "status"
)

// Frame is the JSON envelope written to live thread clients.
type Frame struct {
	Type    string         `json:"type"`
	Message *model.Message `json:"message,omitempty"`
	State   string         `json:"state,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func MessageFrame(m model.Message) Frame {
	return Frame{Type: FrameMessage, Message: &m}
}

func StatusFrame(state string, err error) Frame {
	f := Frame{Type: FrameStatus, State: state}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}
