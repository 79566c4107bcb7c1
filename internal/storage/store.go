package storage

// Store persists the hyperparameter configuration.
type Store interface {
	Load() (Hyperparameters, error)
	Save(h Hyperparameters) error
	Defaults() Hyperparameters
	Path() string
}

// Ledger keeps the history of saved configurations and script patches.
type Ledger interface {
	Close() error

	// Configuration snapshots
	Record(source string, h Hyperparameters) (int64, error)
	List(limit int) ([]Snapshot, error)
	Get(id int64) (*Snapshot, error)

	// Script patches
	RecordPatch(script string, changed int) error
	ListPatches(limit int) ([]PatchEvent, error)
}

var (
	_ Store  = (*JSONStore)(nil)
	_ Ledger = (*History)(nil)
)
