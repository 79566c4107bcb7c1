package main

// Input types for MCP tools. The SDK infers JSON Schema from these structs.
// Pointer types are optional; value types are required.

type emptyInput struct{}

type configGetInput struct {
	Key *string `json:"key,omitempty" jsonschema:"Setting to read, e.g. learning_rate. If omitted the whole configuration is returned."`
}

type configSetInput struct {
	Key   string `json:"key"   jsonschema:"Setting to change. Valid keys: device, vocab_size, d_model, num_layers, num_heads, d_ff, max_seq_len, batch_size, epochs, patience, data_sources, rss_feeds, max_samples, beam_width, learning_rate, weight_decay, save_path"`
	Value string `json:"value" jsonschema:"New value as text. Numbers as decimal strings, lists (data_sources, rss_feeds) comma-separated."`
}

type configDefaultsInput struct {
	Save *bool `json:"save,omitempty" jsonschema:"When true the defaults overwrite the saved configuration."`
}

type feedsCheckInput struct {
	Refresh *bool `json:"refresh,omitempty" jsonschema:"Force a live check even when the background poller has a recent result."`
}

type historyListInput struct {
	Limit   *int  `json:"limit,omitempty"   jsonschema:"Maximum number of entries to return (default 20)"`
	Patches *bool `json:"patches,omitempty" jsonschema:"List script patch events instead of configuration snapshots."`
}

type historyRestoreInput struct {
	ID int64 `json:"id" jsonschema:"Snapshot ID from history_list to make current again"`
}
