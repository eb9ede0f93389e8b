package optimization

// Category groups optimization actions by the subsystem they act on
type Category string

// Action categories
const (
	CategoryMemory    Category = "memory"
	CategoryCPU       Category = "cpu"
	CategoryNetwork   Category = "network"
	CategoryDatabase  Category = "database"
	CategoryCaching   Category = "caching"
	CategoryStability Category = "stability"
)

// String returns the string form of the category
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the category is known
func (c Category) IsValid() bool {
	switch c {
	case CategoryMemory, CategoryCPU, CategoryNetwork, CategoryDatabase, CategoryCaching, CategoryStability:
		return true
	}
	return false
}

// RiskLevel expresses how dangerous an action is to apply
type RiskLevel string

// Risk levels
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Action is an immutable catalog entry describing one optimization.
// A recommendation is a confidence-adjusted copy of a catalog entry,
// never a distinct type.
type Action struct {
	ID                   string
	Category             Category
	Name                 string
	Description          string
	ImpactScore          float64
	Confidence           float64
	Parameters           Params
	SafetyCheck          bool
	RollbackAvailable    bool
	EstimatedImprovement string
	RiskLevel            RiskLevel
}

// Catalog is the static set of known actions, grouped by category
type Catalog struct {
	actions []Action
	byID    map[string]Action
}

// NewCatalog builds a catalog from the given actions
func NewCatalog(actions []Action) *Catalog {
	byID := make(map[string]Action, len(actions))
	for _, a := range actions {
		byID[a.ID] = a
	}
	return &Catalog{actions: actions, byID: byID}
}

// DefaultCatalog returns the built-in action catalog
func DefaultCatalog() *Catalog {
	return NewCatalog([]Action{
		{
			ID:                   "memory_cache_trim",
			Category:             CategoryMemory,
			Name:                 "Trim in-process caches",
			Description:          "Shrink application caches to their floor size and release freed pages",
			ImpactScore:          0.7,
			Confidence:           0.85,
			Parameters:           MemoryParams{TargetCacheSizeMB: 64, GCTargetPercent: 80},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "10-20% memory reduction",
			RiskLevel:            RiskLow,
		},
		{
			ID:                   "memory_gc_tune",
			Category:             CategoryMemory,
			Name:                 "Tighten garbage collection",
			Description:          "Lower the collector target so memory is reclaimed more aggressively",
			ImpactScore:          0.6,
			Confidence:           0.75,
			Parameters:           MemoryParams{TargetCacheSizeMB: 128, GCTargetPercent: 60},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "5-15% memory reduction",
			RiskLevel:            RiskMedium,
		},
		{
			ID:                   "cpu_worker_scale_down",
			Category:             CategoryCPU,
			Name:                 "Scale down worker pool",
			Description:          "Reduce the worker pool so fewer goroutines contend for CPU",
			ImpactScore:          0.8,
			Confidence:           0.7,
			Parameters:           CPUParams{WorkerDelta: -2, MinWorkers: 2},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "10-25% CPU reduction",
			RiskLevel:            RiskMedium,
		},
		{
			ID:                   "cpu_batch_coalesce",
			Category:             CategoryCPU,
			Name:                 "Coalesce background batches",
			Description:          "Merge small background work items into larger batches to cut scheduling overhead",
			ImpactScore:          0.5,
			Confidence:           0.8,
			Parameters:           CPUParams{WorkerDelta: 0, MinWorkers: 2, BatchSize: 50},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "5-10% CPU reduction",
			RiskLevel:            RiskLow,
		},
		{
			ID:                   "network_compression",
			Category:             CategoryNetwork,
			Name:                 "Enable response compression",
			Description:          "Compress HTTP responses above a size floor to cut transfer time",
			ImpactScore:          0.6,
			Confidence:           0.85,
			Parameters:           NetworkParams{CompressionLevel: 6, MinSizeBytes: 1024},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "20-40% transfer reduction",
			RiskLevel:            RiskLow,
		},
		{
			ID:                   "network_keepalive_tune",
			Category:             CategoryNetwork,
			Name:                 "Tune connection keep-alive",
			Description:          "Extend keep-alive so clients reuse connections instead of re-handshaking",
			ImpactScore:          0.4,
			Confidence:           0.75,
			Parameters:           NetworkParams{CompressionLevel: 0, KeepAliveSeconds: 75},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "5-10% latency reduction",
			RiskLevel:            RiskLow,
		},
		{
			ID:                   "database_pool_resize",
			Category:             CategoryDatabase,
			Name:                 "Resize database connection pool",
			Description:          "Grow the connection pool so queries stop queueing for a free connection",
			ImpactScore:          0.7,
			Confidence:           0.75,
			Parameters:           DatabaseParams{MaxOpenConns: 20, MaxIdleConns: 10},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "15-30% query latency reduction",
			RiskLevel:            RiskMedium,
		},
		{
			ID:                   "database_statement_cache",
			Category:             CategoryDatabase,
			Name:                 "Enable prepared statement cache",
			Description:          "Cache prepared statements to skip repeated parsing of hot queries",
			ImpactScore:          0.65,
			Confidence:           0.7,
			Parameters:           DatabaseParams{MaxOpenConns: 0, StatementCache: true},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "10-20% query latency reduction",
			RiskLevel:            RiskLow,
		},
		{
			ID:                   "cache_ttl_extend",
			Category:             CategoryCaching,
			Name:                 "Extend cache TTLs",
			Description:          "Lengthen cache lifetimes so hot entries are recomputed less often",
			ImpactScore:          0.55,
			Confidence:           0.8,
			Parameters:           CachingParams{TTLSeconds: 600, MaxEntries: 5000},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "10-25% response time reduction",
			RiskLevel:            RiskLow,
		},
		{
			ID:                   "stability_shed_load",
			Category:             CategoryStability,
			Name:                 "Shed excess load",
			Description:          "Reject a fraction of incoming work at admission until the error rate recovers",
			ImpactScore:          0.9,
			Confidence:           0.6,
			Parameters:           StabilityParams{MaxConcurrentPercent: 50, CooldownSeconds: 120},
			SafetyCheck:          true,
			RollbackAvailable:    true,
			EstimatedImprovement: "rapid error rate recovery",
			RiskLevel:            RiskHigh,
		},
		{
			ID:                   "stability_worker_restart",
			Category:             CategoryStability,
			Name:                 "Restart worker processes",
			Description:          "Recycle worker processes to clear wedged state; in-flight work is lost",
			ImpactScore:          0.95,
			Confidence:           0.5,
			Parameters:           StabilityParams{MaxConcurrentPercent: 100, RestartWorkers: true},
			SafetyCheck:          true,
			RollbackAvailable:    false,
			EstimatedImprovement: "full recovery from wedged workers",
			RiskLevel:            RiskHigh,
		},
	})
}

// ByID returns the action with the given id
func (c *Catalog) ByID(id string) (Action, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// ByCategory returns every action in the given category, in catalog order
func (c *Catalog) ByCategory(cat Category) []Action {
	var out []Action
	for _, a := range c.actions {
		if a.Category == cat {
			out = append(out, a)
		}
	}
	return out
}

// All returns every catalog action in catalog order
func (c *Catalog) All() []Action {
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Len returns the number of catalog entries
func (c *Catalog) Len() int {
	return len(c.actions)
}
