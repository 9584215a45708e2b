package protocol

import "encoding/json"

type controlFrame struct {
	Type Kind `json:"type"`
}

type relayCommand struct {
	Relay  int  `json:"relay"`
	Active bool `json:"active"`
}

func encodeControl(kind Kind) []byte {
	// A struct with a single string field cannot fail to marshal.
	raw, _ := json.Marshal(controlFrame{Type: kind})

	return raw
}

func Ping() []byte   { return encodeControl(KindPing) }
func Pong() []byte   { return encodeControl(KindPong) }
func Pause() []byte  { return encodeControl(KindPause) }
func Resume() []byte { return encodeControl(KindResume) }

// RelayCommand encodes a request to switch a relay on or off.
func RelayCommand(index int, active bool) []byte {
	raw, _ := json.Marshal(relayCommand{Relay: index, Active: active})

	return raw
}
