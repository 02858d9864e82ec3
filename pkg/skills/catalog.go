package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultReloadDebounce is how long Watch waits for file events to settle.
const DefaultReloadDebounce = 300 * time.Millisecond

// Catalog is a reloadable snapshot of discovered skills shared by the
// long-running surfaces. Reload swaps the snapshot whole.
type Catalog struct {
	discovery *Discovery
	allowed   []string

	mu     sync.RWMutex
	skills map[string]*Skill

	onReload func(map[string]*Skill)
}

// NewCatalog creates an empty catalog; call Reload to populate it.
func NewCatalog(discovery *Discovery, allowed []string) *Catalog {
	return &Catalog{
		discovery: discovery,
		allowed:   allowed,
		skills:    map[string]*Skill{},
	}
}

// NewStaticCatalog wraps an already discovered set of skills. Reload keeps it
// unchanged.
func NewStaticCatalog(skills map[string]*Skill) *Catalog {
	return &Catalog{skills: skills}
}

// OnReload registers fn to be called with the new snapshot after each
// successful reload.
func (c *Catalog) OnReload(fn func(map[string]*Skill)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = fn
}

// Reload rediscovers the skills and replaces the snapshot.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.discovery == nil {
		return nil
	}

	found, err := c.discovery.DiscoverSkills(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to discover skills")
	}
	found = FilterByAllowlist(found, c.allowed)

	c.mu.Lock()
	c.skills = found
	fn := c.onReload
	c.mu.Unlock()

	logger.G(ctx).WithField("count", len(found)).Debug("skill catalog loaded")
	telemetry.AddEvent(ctx, "skills.reloaded", attribute.Int("skills.count", len(found)))
	if fn != nil {
		fn(found)
	}
	return nil
}

// Get returns the skill with the given name.
func (c *Catalog) Get(name string) (*Skill, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.skills[name]
	return s, ok
}

// Snapshot returns the current skills keyed by name. The map must not be
// modified.
func (c *Catalog) Snapshot() map[string]*Skill {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skills
}

// List returns the current skills sorted by name.
func (c *Catalog) List() []*Skill {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Skill, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of skills in the snapshot.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.skills)
}

// Watch reloads the catalog whenever a file below one of the discovery
// directories changes. It blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) error {
	if c.discovery == nil {
		<-ctx.Done()
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	for _, dir := range c.discovery.Dirs() {
		addTree(ctx, watcher, dir)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addTree(ctx, watcher, event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := c.Reload(ctx); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to reload skills")
			} else {
				logger.G(ctx).WithField("count", c.Len()).Info("skills reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("file watcher error")
		}
	}
}

// addTree watches dir and its sub-directories. fsnotify is not recursive.
func addTree(ctx context.Context, watcher *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			logger.G(ctx).WithError(err).WithField("dir", path).Debug("failed to watch directory")
		}
		return nil
	})
}
