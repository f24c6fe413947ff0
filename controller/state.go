package controller

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// State is the session lifecycle phase.
type State int

const (
	// Idle is the state before the first Start.
	Idle State = iota
	// Acquiring waits for the camera to open and deliver its first frame.
	Acquiring
	// Calibrating processes frames until quality first reaches the display threshold.
	Calibrating
	// Measuring exposes the BPM reading whenever quality allows.
	Measuring
	// Stopped is the state after Stop, a failed acquisition or the end of the stream.
	Stopped
)

var stateNames = map[State]string{
	Idle:        "idle",
	Acquiring:   "acquiring",
	Calibrating: "calibrating",
	Measuring:   "measuring",
	Stopped:     "stopped",
}

var stateFromName = map[string]State{
	"idle":        Idle,
	"acquiring":   Acquiring,
	"calibrating": Calibrating,
	"measuring":   Measuring,
	"stopped":     Stopped,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Active reports whether a session in this state owns the source.
func (s State) Active() bool {
	return s == Acquiring || s == Calibrating || s == Measuring
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}

var (
	_ msgpack.CustomEncoder = State(0)
	_ msgpack.CustomDecoder = (*State)(nil)
)

func (s State) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(s.String())
}

func (s *State) DecodeMsgpack(dec *msgpack.Decoder) error {
	name, err := dec.DecodeString()
	if err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}
