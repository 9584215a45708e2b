package connectors

const (
	TopicConnStatus         = "conn.status"
	TopicDeviceLog          = "device.log"
	TopicDashboard          = "device.dashboard"
	TopicRelayUpdate        = "relay.update"
	TopicCountdown          = "relay.countdown"
	TopicRelayCommandResult = "relay.command.result"
	TopicParseError         = "frame.parse_error"
	TopicLowWater           = "device.low_water"
)

// GuaranteedTopics carry state a consumer cannot recover from a later message,
// such as command acknowledgements or edge-triggered alerts. They are never
// dropped for a slow subscriber.
var GuaranteedTopics = []string{
	TopicConnStatus,
	TopicRelayCommandResult,
	TopicLowWater,
}
