package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// CleanupKey identifies one entry of the cleanup catalog.
type CleanupKey string

const (
	CleanupThumbnails        CleanupKey = "thumbnails"
	CleanupTMDbBlur          CleanupKey = "tmdb_blur"
	CleanupTMDbCrop          CleanupKey = "tmdb_crop"
	CleanupAddonPackages     CleanupKey = "addon_packages"
	CleanupTMDbDatabase      CleanupKey = "tmdb_database"
	CleanupUmbrellaCache     CleanupKey = "umbrella_cache"
	CleanupUmbrellaSearch    CleanupKey = "umbrella_search"
	CleanupCocoscrapersCache CleanupKey = "cocoscrapers_cache"
)

// CleanupTarget is a fixed cache path that may be deleted before a backup.
type CleanupTarget struct {
	Key         CleanupKey
	Name        string
	Description string
	// Segments is the path below the source root.
	Segments    []string
	IsDirectory bool
	// Default targets are enabled unless turned off; the others are opt-in.
	Default bool
}

// Path returns the absolute location of the target below sourceRoot.
func (t CleanupTarget) Path(fs FileSystemPort, sourceRoot string) string {
	return fs.Join(append([]string{sourceRoot}, t.Segments...)...)
}

// RelPath returns the slash-separated location below the source root.
func (t CleanupTarget) RelPath() string {
	return strings.Join(t.Segments, "/")
}

const (
	tmdbHelperData   = "plugin.video.themoviedb.helper"
	umbrellaData     = "plugin.video.umbrella"
	cocoscrapersData = "script.module.cocoscrapers"
)

//nolint:gochecknoglobals // closed, read-only catalog; exposed through CleanupCatalog.
var cleanupCatalog = [...]CleanupTarget{
	{
		Key:         CleanupThumbnails,
		Name:        "Thumbnails",
		Description: "userdata/Thumbnails (Kodi rebuilds automatically)",
		Segments:    []string{userdataDir, "Thumbnails"},
		IsDirectory: true,
		Default:     true,
	},
	{
		Key:         CleanupTMDbBlur,
		Name:        "TMDbHelper blur cache",
		Description: "TMDbHelper blur cache",
		Segments:    []string{userdataDir, "addon_data", tmdbHelperData, "blur_v2"},
		IsDirectory: true,
		Default:     true,
	},
	{
		Key:         CleanupTMDbCrop,
		Name:        "TMDbHelper crop cache",
		Description: "TMDbHelper crop cache",
		Segments:    []string{userdataDir, "addon_data", tmdbHelperData, "crop_v2"},
		IsDirectory: true,
		Default:     true,
	},
	{
		Key:         CleanupAddonPackages,
		Name:        "Addon packages",
		Description: "addons/packages (cached addon ZIPs)",
		Segments:    []string{addonsDir, "packages"},
		IsDirectory: true,
		Default:     true,
	},
	{
		Key:         CleanupTMDbDatabase,
		Name:        "TMDbHelper database",
		Description: "TMDbHelper database_07 (will rebuild)",
		Segments:    []string{userdataDir, "addon_data", tmdbHelperData, "database_07"},
		IsDirectory: true,
	},
	{
		Key:         CleanupUmbrellaCache,
		Name:        "Umbrella cache",
		Description: "Umbrella cache.db",
		Segments:    []string{userdataDir, "addon_data", umbrellaData, "cache.db"},
	},
	{
		Key:         CleanupUmbrellaSearch,
		Name:        "Umbrella search",
		Description: "Umbrella search.db",
		Segments:    []string{userdataDir, "addon_data", umbrellaData, "search.db"},
	},
	{
		Key:         CleanupCocoscrapersCache,
		Name:        "Cocoscrapers cache",
		Description: "cocoscrapers cache.db",
		Segments:    []string{userdataDir, "addon_data", cocoscrapersData, "cache.db"},
	},
}

// CleanupCatalog returns a copy of the catalog in its fixed order.
func CleanupCatalog() []CleanupTarget {
	out := make([]CleanupTarget, len(cleanupCatalog))
	for i, t := range cleanupCatalog {
		t.Segments = append([]string(nil), t.Segments...)
		out[i] = t
	}
	return out
}

// LookupCleanupTarget finds a catalog entry by key.
func LookupCleanupTarget(key CleanupKey) (CleanupTarget, bool) {
	for _, t := range cleanupCatalog {
		if t.Key == key {
			return t, true
		}
	}
	return CleanupTarget{}, false
}

// CleanupSet is the set of catalog keys enabled for one run.
type CleanupSet map[CleanupKey]struct{}

// DefaultCleanupSet enables every default target and none of the optional ones.
func DefaultCleanupSet() CleanupSet {
	set := CleanupSet{}
	for _, t := range cleanupCatalog {
		if t.Default {
			set[t.Key] = struct{}{}
		}
	}
	return set
}

// NewCleanupSet builds a set from a key→enabled mapping. Unknown keys are rejected.
func NewCleanupSet(toggles map[CleanupKey]bool) (CleanupSet, error) {
	set := CleanupSet{}
	for key, on := range toggles {
		if _, ok := LookupCleanupTarget(key); !ok {
			return nil, fmt.Errorf("unknown cleanup target %q: %w", key, ErrUsage)
		}
		if on {
			set[key] = struct{}{}
		}
	}
	return set, nil
}

// Enabled reports whether key is in the set.
func (s CleanupSet) Enabled(key CleanupKey) bool {
	_, ok := s[key]
	return ok
}

// Enable adds keys to the set, rejecting keys outside the catalog.
func (s CleanupSet) Enable(keys ...CleanupKey) error {
	for _, key := range keys {
		if _, ok := LookupCleanupTarget(key); !ok {
			return fmt.Errorf("unknown cleanup target %q: %w", key, ErrUsage)
		}
		s[key] = struct{}{}
	}
	return nil
}

// Disable removes keys from the set, rejecting keys outside the catalog.
func (s CleanupSet) Disable(keys ...CleanupKey) error {
	for _, key := range keys {
		if _, ok := LookupCleanupTarget(key); !ok {
			return fmt.Errorf("unknown cleanup target %q: %w", key, ErrUsage)
		}
		delete(s, key)
	}
	return nil
}

// Keys lists enabled keys in catalog order.
func (s CleanupSet) Keys() []CleanupKey {
	keys := make([]CleanupKey, 0, len(s))
	for _, t := range cleanupCatalog {
		if s.Enabled(t.Key) {
			keys = append(keys, t.Key)
		}
	}
	return keys
}

// CleanupStatus describes what happened to one target.
type CleanupStatus string

const (
	CleanupDeleted    CleanupStatus = "deleted"
	CleanupDisabled   CleanupStatus = "disabled"
	CleanupNotPresent CleanupStatus = "not present"
	CleanupFailed     CleanupStatus = "failed"
)

// CleanupEntry is the per-target outcome of a cleanup pass.
type CleanupEntry struct {
	Key        CleanupKey    `json:"key" yaml:"key"`
	Name       string        `json:"name" yaml:"name"`
	Deleted    bool          `json:"deleted" yaml:"deleted"`
	Status     CleanupStatus `json:"status" yaml:"status"`
	BytesFreed int64         `json:"bytes_freed" yaml:"bytes_freed"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// CleanupResult lists every catalog target in catalog order.
type CleanupResult struct {
	Entries    []CleanupEntry `json:"entries" yaml:"entries"`
	BytesFreed int64          `json:"bytes_freed" yaml:"bytes_freed"`
}

// Deleted reports whether the target with the given display name was removed.
func (r CleanupResult) Deleted(name string) bool {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Deleted
		}
	}
	return false
}

// remainingSampleLimit bounds the leftovers listed after a failed recursive delete.
const remainingSampleLimit = 10

// Clean deletes the enabled catalog targets below sourceRoot. Every target is
// attempted; a failure on one never stops the others.
func Clean(
	ctx context.Context,
	deps *Dependencies,
	sourceRoot string,
	enabled CleanupSet,
	progress ProgressFunc,
) CleanupResult {
	rep := newReporter(progress, nil)
	return cleanTargets(ctx, deps.FileSystem, sourceRoot, enabled, rep)
}

func cleanTargets(
	ctx context.Context,
	fs FileSystemPort,
	sourceRoot string,
	enabled CleanupSet,
	rep *reporter,
) CleanupResult {
	result := CleanupResult{Entries: make([]CleanupEntry, 0, len(cleanupCatalog))}
	rep.logf(PhaseCleanup, "Cleaning cache/temp folders...")
	for _, target := range cleanupCatalog {
		entry := cleanTarget(ctx, fs, sourceRoot, target, enabled, rep)
		result.BytesFreed += entry.BytesFreed
		result.Entries = append(result.Entries, entry)
	}
	rep.logf(PhaseCleanup, "Cache cleanup complete, freed %s", FormatSize(result.BytesFreed))
	return result
}

func cleanTarget(
	ctx context.Context,
	fs FileSystemPort,
	sourceRoot string,
	target CleanupTarget,
	enabled CleanupSet,
	rep *reporter,
) CleanupEntry {
	entry := CleanupEntry{Key: target.Key, Name: target.Name}
	if !enabled.Enabled(target.Key) {
		entry.Status = CleanupDisabled
		rep.logf(PhaseCleanup, "Skipped %s (disabled in settings)", target.Description)
		return entry
	}
	if err := ctx.Err(); err != nil {
		entry.Status = CleanupFailed
		entry.Error = err.Error()
		rep.warnf(PhaseCleanup, "Skipped %s (interrupted)", target.Description)
		return entry
	}

	path := target.Path(fs, sourceRoot)
	info, err := fs.Lstat(ctx, path)
	if err != nil {
		if fs.IsNotExist(err) {
			entry.Status = CleanupNotPresent
			rep.logf(PhaseCleanup, "Skipped %s (not present)", target.Description)
			return entry
		}
		return failCleanup(entry, target, err, rep)
	}

	var size int64
	if target.IsDirectory && info.IsDir() {
		size, err = treeSize(ctx, fs, path)
		if err != nil {
			return failCleanup(entry, target, err, rep)
		}
		err = fs.RemoveAll(ctx, path)
	} else {
		size = info.Size()
		err = fs.Remove(ctx, path)
	}
	if err != nil {
		if fs.IsNotEmpty(err) {
			reportRemaining(ctx, fs, sourceRoot, path, rep)
		}
		return failCleanup(entry, target, err, rep)
	}

	entry.Deleted = true
	entry.Status = CleanupDeleted
	entry.BytesFreed = size
	rep.logf(PhaseCleanup, "Deleted %s (%s)", target.Description, FormatSize(size))
	return entry
}

func failCleanup(entry CleanupEntry, target CleanupTarget, err error, rep *reporter) CleanupEntry {
	entry.Status = CleanupFailed
	entry.Error = err.Error()
	rep.warnf(PhaseCleanup, "Failed to delete %s: %v", target.Description, err)
	return entry
}

// reportRemaining lists up to remainingSampleLimit files still present under
// path, relative to sourceRoot.
func reportRemaining(ctx context.Context, fs FileSystemPort, sourceRoot, path string, rep *reporter) {
	var remaining []string
	total := 0
	_ = fs.Walk(ctx, path, func(p string, info FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		total++
		if len(remaining) < remainingSampleLimit {
			rel, relErr := fs.Rel(sourceRoot, p)
			if relErr != nil {
				rel = p
			}
			remaining = append(remaining, NormalizeMemberName(rel))
		}
		return nil
	})
	if total == 0 {
		return
	}
	sort.Strings(remaining)
	rep.warnf(PhaseCleanup, "%d file(s) remain in %s:", total, path)
	for _, rel := range remaining {
		rep.warnf(PhaseCleanup, "  %s", rel)
	}
	if total > len(remaining) {
		rep.warnf(PhaseCleanup, "  ... and %d more", total-len(remaining))
	}
}

// CleanRequest carries the inputs of a standalone cleanup run.
type CleanRequest struct {
	SourceDir string
	Cleanup   CleanupSet
	StateDir  string
	Progress  ProgressFunc
}

// PerformClean validates the source and runs one cleanup pass under the
// operation lock.
func PerformClean(ctx context.Context, req CleanRequest, deps *Dependencies, logger *slog.Logger) (CleanupResult, error) {
	if logger == nil {
		panic("logger is required")
	}
	if err := requireDeps(deps, false); err != nil {
		return CleanupResult{}, err
	}
	rep := newReporter(req.Progress, logger)
	if err := validateSourceDir(ctx, deps.FileSystem, req.SourceDir, rep); err != nil {
		return CleanupResult{}, err
	}
	lock, err := acquireOperationLock(ctx, deps, req.StateDir, req.SourceDir, operationClean, logger)
	if err != nil {
		return CleanupResult{}, err
	}
	defer lock.Close()

	enabled := req.Cleanup
	if enabled == nil {
		enabled = DefaultCleanupSet()
	}
	result := cleanTargets(ctx, deps.FileSystem, req.SourceDir, enabled, rep)
	if ctx.Err() != nil {
		return result, fmt.Errorf("cleanup: %w", ErrInterrupted)
	}
	return result, nil
}

// CatalogItem is one catalog entry with its current state below a source root.
type CatalogItem struct {
	Key         CleanupKey `json:"key" yaml:"key"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Path        string     `json:"path" yaml:"path"`
	Directory   bool       `json:"directory" yaml:"directory"`
	Default     bool       `json:"default" yaml:"default"`
	Enabled     bool       `json:"enabled" yaml:"enabled"`
	Present     bool       `json:"present" yaml:"present"`
	Size        int64      `json:"size" yaml:"size"`
}

// DescribeCatalog lists the catalog with presence and size under sourceRoot.
// An empty sourceRoot skips the filesystem checks.
func DescribeCatalog(ctx context.Context, fs FileSystemPort, sourceRoot string, enabled CleanupSet) ([]CatalogItem, error) {
	items := make([]CatalogItem, 0, len(cleanupCatalog))
	for _, t := range cleanupCatalog {
		item := CatalogItem{
			Key:         t.Key,
			Name:        t.Name,
			Description: t.Description,
			Path:        t.RelPath(),
			Directory:   t.IsDirectory,
			Default:     t.Default,
			Enabled:     enabled.Enabled(t.Key),
		}
		if sourceRoot != "" {
			if err := ctx.Err(); err != nil {
				return items, fmt.Errorf("describe catalog: %w", ErrInterrupted)
			}
			path := t.Path(fs, sourceRoot)
			info, err := fs.Lstat(ctx, path)
			switch {
			case err == nil && info.IsDir():
				item.Present = true
				item.Size, _ = treeSize(ctx, fs, path)
			case err == nil:
				item.Present = true
				item.Size = info.Size()
			case !fs.IsNotExist(err):
				return items, fmt.Errorf("inspect %s: %v: %w", path, err, ErrCritical)
			}
		}
		items = append(items, item)
	}
	return items, nil
}
