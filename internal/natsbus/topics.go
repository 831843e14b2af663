package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// IPCService is the request/reply service name used by the gateway.
const IPCService = "council"

func TopicIPC(service string) string {
	return fmt.Sprintf("host.ipc.%s", service)
}

func TopicEventsDeliberation(runID string) string {
	return fmt.Sprintf("events.deliberation.%s", runID)
}

const (
	TopicEventsAll           = "events.>"
	TopicEventsDeliberations = "events.deliberation.*"
	TopicEventsSecrets       = "events.secrets"
)
