package imports

import (
	"log/slog"
	"path/filepath"
)

// InstallInterception redirects the host to this resolver: the package root
// is prepended to the search path, located modules are reported back as
// import edges and every lookup cache is invalidated so each subsequent load
// is observed. Installing twice is a no-op; installing while another
// resolver holds the host fails with a conflict.
func (r *Resolver) InstallInterception() error {
	if r.installed {
		return nil
	}

	root := r.root()
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	saved, err := r.host.acquire(r, func(cfg *HostConfig) {
		cfg.SearchPath = append([]string{root}, cfg.SearchPath...)
		cfg.OnLocated = r.onModuleLocated
	})
	if err != nil {
		return err
	}

	r.saved = saved
	r.installed = true
	r.clearCaches()
	slog.Debug("import interception installed", "root", root)
	return nil
}

// RemoveInterception restores the lookup configuration captured at install
// time. Removing without an installed session is a no-op.
func (r *Resolver) RemoveInterception() {
	if !r.installed {
		return
	}
	r.host.release(r, r.saved)
	r.installed = false
	r.saved = HostConfig{}
	r.clearCaches()
	slog.Debug("import interception removed")
}

// Intercepting reports whether this resolver currently holds the host.
func (r *Resolver) Intercepting() bool {
	return r.installed
}

// WithInterception runs fn inside an interception session that is released
// on every exit path, panics included.
func (r *Resolver) WithInterception(fn func() error) error {
	if err := r.InstallInterception(); err != nil {
		return err
	}
	defer r.RemoveInterception()
	return fn()
}

// clearCaches drops the host's finder cache and every registry entry this
// resolver has seen, so stale placeholders never hide a load.
func (r *Resolver) clearCaches() {
	r.host.InvalidateCaches()
	names := make([]string, 0, len(r.graph))
	for name := range r.graph {
		names = append(names, name)
	}
	r.host.Forget(names...)
}
