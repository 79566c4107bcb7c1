package configurator

import "github.com/aresml/arescfg/internal/storage"

// Field is one interactive setting.
type Field struct {
	Key   string
	Label string
}

// Fields is the prompt order. rss_feeds is only asked when "rss" is still a
// data source after data_sources was answered.
var Fields = []Field{
	{"device", "Device (cuda/cpu)"},
	{"vocab_size", "Vocabulary size"},
	{"d_model", "Model dimension"},
	{"num_layers", "Number of layers"},
	{"num_heads", "Number of attention heads"},
	{"d_ff", "Feed-forward dimension"},
	{"max_seq_len", "Max sequence length"},
	{"batch_size", "Batch size"},
	{"epochs", "Number of epochs"},
	{"patience", "Patience for early stopping"},
	{"learning_rate", "Learning rate"},
	{"weight_decay", "Weight decay"},
	{"max_samples", "Max samples"},
	{"beam_width", "Beam width for generation"},
	{"data_sources", "Data sources (wikitext/rss, comma-separated)"},
	{"rss_feeds", "RSS feed URLs (comma-separated)"},
	{"save_path", "Checkpoint save path"},
}

// parser returns the ParseFunc for the field's kind and constraints.
func (f Field) parser() ParseFunc {
	kind, _ := storage.KindOf(f.Key)
	return func(text string) (any, error) {
		v, err := storage.ParseValue(kind, text)
		if err != nil {
			return nil, err
		}
		if err := storage.CheckValue(f.Key, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
