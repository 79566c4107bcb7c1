package storage

import "github.com/aresml/arescfg/internal/probe"

const (
	DeviceAccelerator = "cuda"
	DeviceFallback    = "cpu"

	// NotebookSavePath is the mounted Google Drive folder inside Colab.
	NotebookSavePath = "/content/drive/MyDrive"
	LocalSavePath    = "./checkpoints"
)

// DefaultRSSFeeds are the AI news feeds used when "rss" is a data source.
var DefaultRSSFeeds = []string{
	"http://feeds.feedburner.com/analyticsinsight/ijEZ",
	"https://www.kdnuggets.com/feed",
	"https://blog.google/technology/ai/rss/",
	"https://marekrei.com/blog/feed",
	"https://paperswithcode.com/rss",
	"https://www.artificialintelligence-news.com/feed/",
	"https://machinelearningmastery.com/feed/",
}

// Defaults returns a fresh default configuration for the given environment.
func Defaults(env probe.Environment) Hyperparameters {
	h := Hyperparameters{
		Device:       DeviceFallback,
		VocabSize:    20000,
		DModel:       256,
		NumLayers:    4,
		NumHeads:     8,
		DFF:          1024,
		MaxSeqLen:    128,
		BatchSize:    8,
		Epochs:       20,
		Patience:     7,
		DataSources:  []string{"wikitext", "rss"},
		RSSFeeds:     append([]string(nil), DefaultRSSFeeds...),
		MaxSamples:   10000,
		BeamWidth:    7,
		LearningRate: 0.0005,
		WeightDecay:  0.01,
		SavePath:     LocalSavePath,
	}
	if env.HasAccelerator() {
		h.Device = DeviceAccelerator
	}
	if env.IsHostedNotebook() {
		h.SavePath = NotebookSavePath
	}
	return h
}
