package metrics

// Metric names shared by the monitor, the relay and the HTTP surface.
const (
	FeedPolls           = "feed_polls_total"
	FeedPollFailures    = "feed_poll_failures_total"
	FeedPollDuration    = "feed_poll_duration"
	Classifications     = "classifications_total"
	AlertsSent          = "alerts_sent_total"
	AlertsDuplicate     = "alerts_duplicate_total"
	AlertsFailed        = "alerts_failed_total"
	RelayEvents         = "relay_events_total"
	RelayDropped        = "relay_dropped_total"
	RelayFailures       = "relay_failures_total"
	RelayDuration       = "relay_duration"
	MediaStaged         = "media_staged_total"
	StorePruned         = "store_pruned_total"
	StoreFiredEvents    = "store_fired_events"
	StoreRelayMappings  = "store_relay_mappings"
	HTTPRequests        = "http_requests_total"
	HTTPRequestDuration = "http_request_duration"
)
