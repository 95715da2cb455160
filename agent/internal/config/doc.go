// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config{Channel} — full config tree
//   - ChannelConfig — endpoint_url, instrumentation_key, max_batch_interval,
//     max_batch_size_bytes, disable_telemetry, enable_durable_buffer,
//     storage_dir, is_retry_disabled, disable_fire_and_forget_transport,
//     emit_line_delimited_json, sampling_percentage, compress_batches,
//     send_timeout, auth, metrics_addr
//   - AuthConfig — mode (apikey|none), header, key_env; Key() resolves the
//     key from the environment
//
// Load(path) reads YAML, or JSON with comments when the file ends in .json or
// .jsonc, applies defaults (15s interval, 100 KiB batches, durable buffer on,
// fire-and-forget transport off), then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors by re-adding the watch after each event.
package config
