package metrics

// Payment-path counters, read from an ops endpoint or debugger. Cheap enough
// to update unconditionally.
var (
	GatewayFailures   Counter
	WebhooksAccepted  Counter
	WebhooksRejected  Counter
	WebhooksDuplicate Counter
	WebhookConflicts  Counter
)
