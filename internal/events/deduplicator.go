package events

import (
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DeduplicationConfig holds configuration for error deduplication
type DeduplicationConfig struct {
	Enabled         bool
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// DefaultDeduplicationConfig returns default deduplication settings
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled:         true,
		TTL:             5 * time.Minute,
		MaxEntries:      1000,
		CleanupInterval: time.Minute,
	}
}

// ErrorDeduplicator suppresses repeats of the same error within a TTL window
// so a persistently failing channel cannot flood downstream consumers.
type ErrorDeduplicator struct {
	config *DeduplicationConfig
	mu     sync.Mutex
	seen   map[uint64]*dedupeEntry

	// Metrics
	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64

	// Lifecycle
	stopOnce    sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	logger      *slog.Logger
}

// dedupeEntry tracks occurrences of one error signature
type dedupeEntry struct {
	firstSeen  time.Time
	lastSeen   time.Time
	count      int64
	suppressed int64
}

// NewErrorDeduplicator creates a new error deduplicator
func NewErrorDeduplicator(config *DeduplicationConfig, logger *slog.Logger) *ErrorDeduplicator {
	if config == nil {
		config = DefaultDeduplicationConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ed := &ErrorDeduplicator{
		config:      config,
		seen:        make(map[uint64]*dedupeEntry),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      logger,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go ed.cleanupLoop()
	}

	return ed
}

// ShouldProcess reports whether the event is new (or expired) and should be
// processed, or a duplicate within the TTL window that should be suppressed.
func (ed *ErrorDeduplicator) ShouldProcess(event ErrorEvent) bool {
	if ed == nil || !ed.config.Enabled {
		return true
	}

	ed.totalSeen.Add(1)
	hash := signature(event)
	now := time.Now()

	ed.mu.Lock()
	defer ed.mu.Unlock()

	entry, exists := ed.seen[hash]
	if !exists {
		if len(ed.seen) >= ed.config.MaxEntries {
			ed.evictOldestLocked()
		}
		ed.seen[hash] = &dedupeEntry{firstSeen: now, lastSeen: now, count: 1}
		return true
	}

	if now.Sub(entry.lastSeen) > ed.config.TTL {
		// Window expired, treat as new
		entry.firstSeen = now
		entry.lastSeen = now
		entry.count = 1
		entry.suppressed = 0
		return true
	}

	entry.lastSeen = now
	entry.count++
	entry.suppressed++
	ed.totalSuppressed.Add(1)

	// Log every 10th suppression to keep a trace without spamming
	if entry.suppressed%10 == 0 {
		ed.logger.Debug("suppressing duplicate error",
			"component", event.GetComponent(),
			"category", event.GetCategory(),
			"count", entry.count,
			"first_seen", entry.firstSeen,
		)
	}

	return false
}

// signature hashes the parts of an event that identify the error, skipping
// context values that change between occurrences.
func signature(event ErrorEvent) uint64 {
	h := fnv.New64a()
	h.Write([]byte(event.GetComponent()))
	h.Write([]byte(event.GetCategory()))
	h.Write([]byte(event.GetMessage()))

	if ctx := event.GetContext(); ctx != nil {
		for _, key := range []string{"operation", "sound", "pool"} {
			if v, ok := ctx[key].(string); ok {
				h.Write([]byte(v))
			}
		}
	}

	return h.Sum64()
}

// evictOldestLocked removes the entry with the oldest lastSeen timestamp.
// Caller must hold ed.mu.
func (ed *ErrorDeduplicator) evictOldestLocked() {
	var oldestHash uint64
	var oldestTime time.Time
	first := true

	for hash, entry := range ed.seen {
		if first || entry.lastSeen.Before(oldestTime) {
			oldestHash = hash
			oldestTime = entry.lastSeen
			first = false
		}
	}

	if !first {
		delete(ed.seen, oldestHash)
	}
}

// cleanupLoop periodically removes expired entries
func (ed *ErrorDeduplicator) cleanupLoop() {
	ticker := time.NewTicker(ed.config.CleanupInterval)
	defer ticker.Stop()
	defer close(ed.cleanupDone)

	for {
		select {
		case <-ticker.C:
			ed.cleanup()
		case <-ed.stopCleanup:
			return
		}
	}
}

// cleanup removes entries whose TTL window has fully expired
func (ed *ErrorDeduplicator) cleanup() {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	now := time.Now()
	expired := 0

	for hash, entry := range ed.seen {
		if now.Sub(entry.lastSeen) > ed.config.TTL {
			delete(ed.seen, hash)
			expired++
		}
	}

	if expired > 0 {
		ed.logger.Debug("cleaned up expired deduplication entries",
			"expired", expired,
			"remaining", len(ed.seen),
		)
	}
}

// GetStats returns deduplication statistics
func (ed *ErrorDeduplicator) GetStats() DeduplicationStats {
	if ed == nil {
		return DeduplicationStats{}
	}

	ed.mu.Lock()
	cacheSize := len(ed.seen)
	ed.mu.Unlock()

	return DeduplicationStats{
		TotalSeen:       ed.totalSeen.Load(),
		TotalSuppressed: ed.totalSuppressed.Load(),
		CacheSize:       cacheSize,
	}
}

// Shutdown stops the cleanup goroutine. Safe to call more than once.
func (ed *ErrorDeduplicator) Shutdown() {
	if ed == nil {
		return
	}

	ed.stopOnce.Do(func() {
		if ed.config.Enabled && ed.config.CleanupInterval > 0 {
			close(ed.stopCleanup)
			<-ed.cleanupDone
		}
	})
}

// DeduplicationStats contains deduplication metrics
type DeduplicationStats struct {
	TotalSeen       uint64
	TotalSuppressed uint64
	CacheSize       int
}
