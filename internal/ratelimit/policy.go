package ratelimit

import "time"

// BurstWindow is the sub-window that catches short spikes inside an
// otherwise compliant long window.
const BurstWindow = 10 * time.Second

// Policy caps one endpoint: at most Limit requests per Window, and at most
// Burst requests per BurstWindow.
type Policy struct {
	Endpoint string
	Limit    int
	Window   time.Duration
	Burst    int
}

var policies = map[string]Policy{
	"checkout_create": {
		Endpoint: "checkout_create",
		Limit:    5,
		Window:   5 * time.Minute,
		Burst:    2,
	},
	"checkout_preview": {
		Endpoint: "checkout_preview",
		Limit:    30,
		Window:   time.Minute,
		Burst:    10,
	},
	"payment_webhook": {
		Endpoint: "payment_webhook",
		Limit:    120,
		Window:   time.Minute,
		Burst:    40,
	},
}

// PolicyFor returns the policy for an endpoint name. Endpoints without a
// policy are not limited.
func PolicyFor(endpoint string) (Policy, bool) {
	policy, ok := policies[endpoint]
	return policy, ok
}
