package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	sharedcfg "github.com/kjrjay/vegabase/internal/config"
)

// watchDebounce collapses the burst of events editors emit for one save.
const watchDebounce = 100 * time.Millisecond

// planWatcher tracks the files whose changes trigger a re-plan.
type planWatcher struct {
	schemaFile  string
	configFile  string
	projectRoot string
	logger      *slog.Logger
}

// relevant reports whether an event touches the schema or config file.
// Directories are watched, so editors that save via rename are seen too.
func (w *planWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.schemaFile || (w.configFile != "" && name == w.configFile)
}

// reloadConfig picks up a schema_file change from the project config.
func (w *planWatcher) reloadConfig() {
	if w.projectRoot == "" {
		return
	}
	cfg, err := sharedcfg.LoadFromDir(w.projectRoot)
	if err != nil {
		w.logger.Warn("failed to reload config", slog.Any("error", err))
		return
	}
	if cfg == nil {
		return
	}
	path := cfg.SchemaFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.projectRoot, path)
	}
	if path != w.schemaFile {
		w.logger.Info("schema file changed", slog.String("from", w.schemaFile), slog.String("to", path))
		w.schemaFile = path
	}
}

// dirs returns the directories to watch.
func (w *planWatcher) dirs() []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range []string{w.schemaFile, w.configFile} {
		if f == "" {
			continue
		}
		if dir := filepath.Dir(f); !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	return out
}

// loop waits for relevant events and calls replan once per debounced burst,
// always on the calling goroutine. It returns when ctx is done.
func (w *planWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, replan func(schemaFile string)) {
	var debounceTimer *time.Timer
	trigger := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := filepath.Clean(event.Name)
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- name:
				default:
				}
			})

		case name := <-trigger:
			w.logger.Debug("change detected", slog.String("file", filepath.Base(name)))
			if name == w.configFile {
				w.reloadConfig()
				for _, dir := range w.dirs() {
					_ = watcher.Add(dir)
				}
			}
			replan(w.schemaFile)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// watchPlan re-plans on every schema or config change until interrupted.
func watchPlan(ctx context.Context, cc *CommandContext) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	schemaFile, err := filepath.Abs(cc.Cfg.SchemaFile)
	if err != nil {
		return err
	}
	w := &planWatcher{
		schemaFile:  schemaFile,
		projectRoot: cc.Cfg.ProjectRoot,
		logger:      cc.Logger,
	}
	if cc.Cfg.ProjectRoot != "" {
		w.configFile = sharedcfg.FindConfigFile(cc.Cfg.ProjectRoot)
	}

	for _, dir := range w.dirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	cc.Renderer.Println(cc.Renderer.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", schemaFile)))
	w.loop(ctx, watcher, func(path string) {
		cc.Renderer.Println("")
		if err := planAndRender(ctx, cc, path); err != nil {
			cc.Renderer.Errorf("Error: %v", err)
		}
	})
	return nil
}
