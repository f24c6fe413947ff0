package controller

import "strconv"

// User-facing messages and advisories.
const (
	MessageIdle        = "press start to measure"
	MessageAcquiring   = "starting camera"
	MessageCalibrating = "calibrating: keep your fingertip still"
	MessageMeasuring   = "measuring"
	MessageStopped     = "stopped"

	// AdvisoryFlashRequired is shown for the whole session when the source
	// has no controllable illumination.
	AdvisoryFlashRequired = "flash required: use bright ambient light"
	// AdvisoryPlaceFinger is shown while the finger gate rejects frames.
	AdvisoryPlaceFinger = "place your fingertip over the camera and flash"
	// AdvisoryCameraUnavailable is shown after a failed acquisition.
	AdvisoryCameraUnavailable = "camera unavailable"
	// AdvisoryNoFrames is shown when the camera opened but stayed silent.
	AdvisoryNoFrames = "camera delivered no frames"
	// AdvisoryStreamEnded is shown when the source closed its frame stream.
	AdvisoryStreamEnded = "camera stream ended"
)

// Display is the snapshot rendered after every processed frame.
type Display struct {
	SessionID string `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
	State     State  `json:"state"                msgpack:"state"`
	// BPM is nil while the reading must be hidden.
	BPM            *int   `json:"bpm"             msgpack:"bpm"`
	QualityPercent int    `json:"quality_percent" msgpack:"quality_percent"`
	FingerPresent  bool   `json:"finger_present"  msgpack:"finger_present"`
	Message        string `json:"message"         msgpack:"message"`
	// Advisory carries warnings that do not stop the session.
	Advisory    string  `json:"advisory,omitempty" msgpack:"advisory,omitempty"`
	TimestampMs float64 `json:"timestamp_ms"       msgpack:"timestamp_ms"`
	// Waveform is the conditioned value for live plotting.
	Waveform *float64 `json:"waveform,omitempty" msgpack:"waveform,omitempty"`
	// Beat is set on the frame that confirmed a heartbeat.
	Beat bool `json:"beat,omitempty" msgpack:"beat,omitempty"`
}

// BPMText renders the reading, or an em dash placeholder while it is hidden.
func (d Display) BPMText() string {
	if d.BPM == nil {
		return "—"
	}
	return strconv.Itoa(*d.BPM)
}

// Sink receives every Display a controller produces.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Publish delivers one display. Each sink is called from its own
	// goroutine, in state order. A sink that falls behind loses the oldest
	// displays queued for it, never the latest one.
	Publish(d Display) error
}
