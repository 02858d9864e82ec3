package lint

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultWatchDebounce is the quiet period before a re-run.
const DefaultWatchDebounce = 300 * time.Millisecond

// Watch lints patterns once, then again whenever something changes below
// the directories they cover, passing every result to fn. It blocks until
// ctx is cancelled. Only the working tree can be watched.
func (l *Linter) Watch(ctx context.Context, debounce time.Duration, fn func(*Report, error), patterns ...string) error {
	if _, ok := l.fs.(osFS); !ok {
		return errors.New("watch is only supported on the working tree")
	}
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	for _, root := range watchRoots(patterns) {
		addWatchTree(ctx, watcher, root, watched)
	}
	if len(watched) == 0 {
		return errors.Errorf("no directories found to watch for %v", patterns)
	}

	fn(l.Lint(ctx, patterns...))

	var (
		timer   *time.Timer
		changed string
	)
	rerun := make(chan struct{}, 1)
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
					addWatchTree(ctx, watcher, event.Name, watched)
				}
			}
			changed = event.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})
		case <-rerun:
			telemetry.AddEvent(ctx, "lint.rerun", attribute.String("lint.changed", changed))
			fn(l.Lint(ctx, patterns...))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("file watcher error")
		}
	}
}

// watchRoots returns the directory each pattern lives under: the pattern
// itself for directories, the parent for files and the static prefix for
// globs.
func watchRoots(patterns []string) []string {
	var roots []string
	for _, p := range patterns {
		if info, err := os.Stat(p); err == nil {
			if info.IsDir() {
				roots = append(roots, p)
			} else {
				roots = append(roots, filepath.Dir(p))
			}
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		roots = append(roots, filepath.FromSlash(base))
	}
	return roots
}

func addWatchTree(ctx context.Context, watcher *fsnotify.Watcher, root string, watched map[string]bool) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if watched[p] {
			return nil
		}
		if err := watcher.Add(p); err != nil {
			logger.G(ctx).WithError(err).WithField("dir", p).Debug("failed to watch directory")
			return nil
		}
		watched[p] = true
		return nil
	})
}
