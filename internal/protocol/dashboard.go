package protocol

// Plant is one moisture channel of the dashboard frame.
type Plant struct {
	Moisture float64 `json:"moisture"`
}

// RelayState is the per-relay section of the dashboard frame. ActivationTime is
// the remaining activation window in seconds.
type RelayState struct {
	Active         bool  `json:"active"`
	ActivationTime int64 `json:"activationTime"`
}

// Dashboard is the periodic sensor/relay snapshot pushed by the controller.
type Dashboard struct {
	Plants      []Plant      `json:"plants"`
	Temperature float64      `json:"temperature"`
	Pressure    float64      `json:"pressure"`
	WaterLevel  bool         `json:"waterLevel"`
	Relays      []RelayState `json:"relays"`
}

// RelayUpdates expands the relay section into per-index updates.
func (d Dashboard) RelayUpdates() []RelayUpdate {
	out := make([]RelayUpdate, 0, len(d.Relays))
	for i, relay := range d.Relays {
		remaining := relay.ActivationTime * 1000
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, RelayUpdate{Index: i, Active: relay.Active, RemainingMs: remaining})
	}

	return out
}

// LowWater reports whether the float switch says the reservoir is low. The
// controller sends waterLevel=false when there is not enough water to irrigate.
func (d Dashboard) LowWater() bool {
	return !d.WaterLevel
}
