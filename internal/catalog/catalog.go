// Package catalog loads the sound catalog file and resolves entries for
// playback. It implements soundcore.EntryProvider: lookups accept an entry
// name or its decimal id, decode the referenced audio file on first use and
// cache the PCM with a TTL. Enable Preload to pay the decode cost at load
// time instead of on the first play.
package catalog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/soundpool-go/internal/errors"
	"github.com/tphakala/soundpool-go/internal/logging"
	"github.com/tphakala/soundpool-go/internal/soundcore"
	"gopkg.in/yaml.v3"
)

// Config controls catalog loading and caching.
type Config struct {
	Path     string        // path to the catalog YAML file
	Watch    bool          // reload the catalog when the file changes
	Preload  bool          // decode every clip at load time
	CacheTTL time.Duration // decoded clip cache TTL, 0 keeps clips until reload
	OnReload func()        // called after every successful watcher reload
}

// Entry is one sound in the catalog file. Zero volume and pitch mean
// unset and default to 1.
type Entry struct {
	Name    string  `yaml:"name"`
	ID      int     `yaml:"id"`
	File    string  `yaml:"file"`
	Volume  float64 `yaml:"volume,omitempty"`
	Pitch   float64 `yaml:"pitch,omitempty"`
	Loop    bool    `yaml:"loop,omitempty"`
	Preload bool    `yaml:"preload,omitempty"`
}

func (e *Entry) applyDefaults() {
	if e.Volume == 0 {
		e.Volume = 1
	}
	if e.Pitch == 0 {
		e.Pitch = 1
	}
}

// catalogFile is the YAML document shape.
type catalogFile struct {
	Sounds []Entry `yaml:"sounds"`
}

// EntryInfo is one catalog row for listings. Format fields are filled once
// the file has been probed or decoded.
type EntryInfo struct {
	Name       string        `json:"name"`
	ID         int           `json:"id"`
	File       string        `json:"file"`
	Volume     float64       `json:"volume"`
	Pitch      float64       `json:"pitch"`
	Loop       bool          `json:"loop,omitempty"`
	Preload    bool          `json:"preload,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	SampleRate int           `json:"sample_rate,omitempty"`
	Channels   int           `json:"channels,omitempty"`
}

// ProbeResult reports one entry's file probe for catalog validation.
type ProbeResult struct {
	Entry Entry
	Info  AudioInfo
	Err   error
}

// record pairs an entry with its resolved file path and memoized probe.
type record struct {
	entry Entry
	path  string
	info  *AudioInfo
}

// Catalog resolves sound names and ids to playable entries.
type Catalog struct {
	mu      sync.RWMutex
	path    string
	baseDir string
	byName  map[string]*record
	byID    map[int]*record
	order   []string

	cache   *cache.Cache
	preload bool
	decode  func(path string) (*clip, error)

	logger   *slog.Logger
	onReload func()

	watcher *fsWatcher
}

// New loads the catalog file at cfg.Path. Entries with duplicate names or
// ids, out-of-range volume or pitch, or missing fields fail the load; file
// problems surface later, when the entry is probed or played.
func New(cfg Config, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.ForService("catalog")
		if logger == nil {
			logger = slog.Default()
		}
	}
	if cfg.Path == "" {
		return nil, errors.Newf("catalog path is not configured").
			Component("catalog").
			Category(errors.CategoryConfiguration).
			Build()
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, errors.Newf("failed to resolve catalog path %s: %w", cfg.Path, err).
			Component("catalog").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Catalog{
		path:    absPath,
		baseDir: filepath.Dir(absPath),
		// TTL 0 never expires and starts no janitor
		cache:    cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		preload:  cfg.Preload,
		decode:   decodeFile,
		logger:   logger.With("catalog", filepath.Base(absPath)),
		onReload: cfg.OnReload,
	}

	if err := c.Reload(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		w, err := newFSWatcher(c)
		if err != nil {
			return nil, err
		}
		c.watcher = w
	}

	c.logger.Info("sound catalog loaded",
		"path", absPath,
		"entries", c.Len(),
		"preload", cfg.Preload,
		"watch", cfg.Watch)
	return c, nil
}

// Lookup implements soundcore.EntryProvider. Names shadow numeric ids:
// an entry literally named "7" wins over the entry with id 7.
func (c *Catalog) Lookup(nameOrID string) (soundcore.SoundEntry, bool) {
	c.mu.RLock()
	rec := c.byName[nameOrID]
	if rec == nil {
		if id, err := strconv.Atoi(nameOrID); err == nil {
			rec = c.byID[id]
		}
	}
	c.mu.RUnlock()
	if rec == nil {
		return soundcore.SoundEntry{}, false
	}

	cl, err := c.clipFor(rec)
	if err != nil {
		c.logger.Error("failed to load sound clip",
			"sound", rec.entry.Name,
			"file", rec.entry.File,
			"error", err)
		return soundcore.SoundEntry{}, false
	}

	return soundcore.SoundEntry{
		Name:   rec.entry.Name,
		ID:     rec.entry.ID,
		Clip:   cl,
		Volume: rec.entry.Volume,
		Pitch:  rec.entry.Pitch,
		Loop:   rec.entry.Loop,
	}, true
}

// Entries lists the catalog in file order. Format fields are filled for
// entries already probed; call ProbeAll first for a complete listing.
func (c *Catalog) Entries() []EntryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]EntryInfo, 0, len(c.order))
	for _, name := range c.order {
		rec := c.byName[name]
		info := EntryInfo{
			Name:    rec.entry.Name,
			ID:      rec.entry.ID,
			File:    rec.entry.File,
			Volume:  rec.entry.Volume,
			Pitch:   rec.entry.Pitch,
			Loop:    rec.entry.Loop,
			Preload: rec.entry.Preload,
		}
		if rec.info != nil {
			info.Duration = rec.info.Duration()
			info.SampleRate = rec.info.SampleRate
			info.Channels = rec.info.NumChannels
		}
		infos = append(infos, info)
	}
	return infos
}

// ProbeAll probes every entry's file, memoizing format info for listings.
// Probe failures do not fail the catalog; each entry reports its own error.
func (c *Catalog) ProbeAll() []ProbeResult {
	c.mu.RLock()
	recs := make([]*record, 0, len(c.order))
	for _, name := range c.order {
		recs = append(recs, c.byName[name])
	}
	c.mu.RUnlock()

	results := make([]ProbeResult, 0, len(recs))
	for _, rec := range recs {
		info, err := c.probeRecord(rec)
		results = append(results, ProbeResult{Entry: rec.entry, Info: info, Err: err})
	}
	return results
}

func (c *Catalog) probeRecord(rec *record) (AudioInfo, error) {
	c.mu.RLock()
	memo := rec.info
	c.mu.RUnlock()
	if memo != nil {
		return *memo, nil
	}

	info, err := ProbeFile(rec.path)
	if err != nil {
		return AudioInfo{}, errors.Newf("failed to probe %s: %w", rec.entry.File, err).
			Component("catalog").
			Category(errors.CategoryFileParsing).
			Context("sound", rec.entry.Name).
			Context("file", rec.entry.File).
			Build()
	}

	c.mu.Lock()
	rec.info = &info
	c.mu.Unlock()
	return info, nil
}

// Reload re-reads the catalog file. On failure the previous catalog stays
// in effect; on success the decoded clip cache is flushed and preloads run
// against the new entries.
func (c *Catalog) Reload() error {
	entries, err := loadFile(c.path)
	if err != nil {
		return err
	}

	byName := make(map[string]*record, len(entries))
	byID := make(map[int]*record, len(entries))
	order := make([]string, 0, len(entries))
	for i := range entries {
		rec := &record{entry: entries[i], path: c.resolvePath(entries[i].File)}
		byName[rec.entry.Name] = rec
		byID[rec.entry.ID] = rec
		order = append(order, rec.entry.Name)
	}

	c.mu.Lock()
	firstLoad := c.byName == nil
	c.byName = byName
	c.byID = byID
	c.order = order
	c.mu.Unlock()

	c.cache.Flush()
	c.preloadClips(byName, order)

	if !firstLoad {
		c.logger.Info("sound catalog reloaded", "entries", len(order))
	}
	return nil
}

func (c *Catalog) resolvePath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.baseDir, file)
}

// loadFile parses and validates the catalog document. An empty document is
// a valid, empty catalog.
func loadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Newf("failed to open catalog file: %w", err).
			Component("catalog").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	var doc catalogFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Newf("failed to parse catalog file: %w", err).
			Component("catalog").
			Category(errors.CategoryCatalogLoad).
			Context("path", path).
			Build()
	}

	for i := range doc.Sounds {
		doc.Sounds[i].applyDefaults()
	}
	if err := validateEntries(doc.Sounds); err != nil {
		return nil, err
	}
	return doc.Sounds, nil
}

func validateEntries(entries []Entry) error {
	names := make(map[string]struct{}, len(entries))
	ids := make(map[int]struct{}, len(entries))

	for i := range entries {
		e := &entries[i]
		switch {
		case e.Name == "":
			return entryError(i, e, "catalog entry %d has no name", i)
		case e.File == "":
			return entryError(i, e, "catalog entry %q has no file", e.Name)
		case e.ID < 1:
			return entryError(i, e, "catalog entry %q needs a positive id", e.Name)
		case e.Volume < 0 || e.Volume > 1:
			return entryError(i, e, "catalog entry %q volume %.2f is outside [0, 1]", e.Name, e.Volume)
		case e.Pitch < -3 || e.Pitch > 3:
			return entryError(i, e, "catalog entry %q pitch %.2f is outside [-3, 3]", e.Name, e.Pitch)
		}
		if _, dup := names[e.Name]; dup {
			return entryError(i, e, "duplicate catalog entry name %q", e.Name)
		}
		if _, dup := ids[e.ID]; dup {
			return entryError(i, e, "duplicate catalog entry id %d for %q", e.ID, e.Name)
		}
		names[e.Name] = struct{}{}
		ids[e.ID] = struct{}{}
	}
	return nil
}

func entryError(index int, e *Entry, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("catalog").
		Category(errors.CategoryValidation).
		Context("entry_index", index).
		Context("entry_name", e.Name).
		Build()
}

// clipFor returns the decoded clip for a record, decoding on cache miss.
// Entries sharing a file share one decode.
func (c *Catalog) clipFor(rec *record) (*clip, error) {
	if cached, found := c.cache.Get(rec.path); found {
		if cl, ok := cached.(*clip); ok {
			return cl, nil
		}
	}

	cl, err := c.decode(rec.path)
	if err != nil {
		return nil, errors.Newf("failed to decode %s: %w", rec.entry.File, err).
			Component("catalog").
			Category(errors.CategoryFileParsing).
			Context("sound", rec.entry.Name).
			Context("file", rec.entry.File).
			Build()
	}

	c.cache.Set(rec.path, cl, cache.DefaultExpiration)
	c.memoizeInfo(rec, cl)
	return cl, nil
}

// memoizeInfo fills probe info from a decoded clip so listings show format
// data without a separate probe pass.
func (c *Catalog) memoizeInfo(rec *record, cl *clip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.info != nil {
		return
	}
	rec.info = &AudioInfo{
		SampleRate:   cl.sampleRate,
		TotalSamples: len(cl.samples) / max(cl.channels, 1),
		NumChannels:  cl.channels,
		BitDepth:     16,
	}
}

// preloadClips decodes flagged entries up front. Decode failures are logged
// and left for Lookup to report; a broken file must not fail startup.
func (c *Catalog) preloadClips(byName map[string]*record, order []string) {
	for _, name := range order {
		rec := byName[name]
		if !c.preload && !rec.entry.Preload {
			continue
		}
		if _, err := c.clipFor(rec); err != nil {
			c.logger.Warn("failed to preload sound clip",
				"sound", rec.entry.Name,
				"file", rec.entry.File,
				"error", err)
		}
	}
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Path returns the absolute catalog file path.
func (c *Catalog) Path() string {
	return c.path
}

// CachedClips returns the number of decoded clips currently cached.
func (c *Catalog) CachedClips() int {
	return c.cache.ItemCount()
}

// Close stops the file watcher and drops cached clips.
func (c *Catalog) Close() {
	if c.watcher != nil {
		c.watcher.stop()
	}
	c.cache.Flush()
}

func lowerExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
