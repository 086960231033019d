package catalog

// Default tuning values used when Options leaves a field at zero.
const (
	DefaultMaxRedirectDepth  = 16
	DefaultChangelogPageSize = 100
)

// Options tunes a Service.
type Options struct {
	// MaxRedirectDepth bounds how many redirect hops a walk may take.
	MaxRedirectDepth int
	// ChangelogPageSize is how many entries ReadFrom fetches per read transaction.
	ChangelogPageSize int
}

// Service implements the catalog's edit protocol and read interface on top of a Store.
// It is safe for concurrent use; all coordination happens in the store's transactions.
type Service struct {
	store    Store
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	maxDepth int
	pageSize int
}

// NewService creates a new Service with the provided dependencies.
func NewService(store Store, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	if opts.MaxRedirectDepth <= 0 {
		opts.MaxRedirectDepth = DefaultMaxRedirectDepth
	}
	if opts.ChangelogPageSize <= 0 {
		opts.ChangelogPageSize = DefaultChangelogPageSize
	}
	return &Service{
		store:    store,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		maxDepth: opts.MaxRedirectDepth,
		pageSize: opts.ChangelogPageSize,
	}
}
