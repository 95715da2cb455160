// Package config loads the collector configuration from the `server:` section
// of config.yaml (the `channel:` key is ignored by the collector binary).
//
// Config fields:
//   - HTTPPort            — port for the track endpoint and query API (default 8080)
//   - AppID               — application id echoed in batch responses (default: random)
//   - MaxBodyBytes        — decompressed body limit (default 10 MiB)
//   - Auth.Mode           — "apikey" or "none"
//   - Auth.KeyEnv         — environment variable holding the expected API key
//   - Auth.Header         — HTTP header name (default "x-api-key")
//   - Retention.TTL       — how long accepted envelopes stay queryable (default 15m)
//   - Retention.MaxPerKey — envelopes kept per instrumentation key (default 10000)
//   - Faults              — scripted failure statuses for the first batches
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
