package models

// StoreStats summarises the contents of a state store.
type StoreStats struct {
	Backend       string `json:"backend"`
	FiredEvents   int64  `json:"firedEvents"`
	RelayMappings int64  `json:"relayMappings"`
}
