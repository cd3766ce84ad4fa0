package assetcache

import (
	"context"
)

// runReaper is the cache's single background goroutine, ticking on
// Options.ReaperInterval and reclassifying slots whose weak value no
// longer upgrades. It exits when ctx is cancelled (by Close) and
// signals reaperWG so Close can wait for it to fully stop.
func (c *cacheCore) runReaper(ctx context.Context) {
	defer close(c.reaperWG)
	ticker := c.opts.Clock.After(c.opts.ReaperInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker:
			c.tick()
			ticker = c.opts.Clock.After(c.opts.ReaperInterval)
		}
	}
}

// tick scans every shard once, each under its own lock, reclassifying
// Loaded slots whose weak value no longer upgrades to Expired and
// idempotently recording still-Aborted slots on the timeline.
func (c *cacheCore) tick() {
	resident := 0
	keepaliveActive := 0

	c.shards.forEach(func(sh *shard) {
		resident += len(sh.m)
		for key, s := range sh.m {
			switch s.state {
			case stateLoaded:
				if s.isAlive == nil || !s.isAlive() {
					s.state = stateExpired
					s.value = nil
					s.isAlive = nil
					c.timeline.dropped(key)
					c.opts.Metrics.Expired(s.longName)
				} else if s.guard != nil && s.guard.refs.Load() > 0 {
					keepaliveActive++
				}
			case stateAborted:
				c.timeline.aborted(key)
			case stateLoading, stateExpired:
				// no-op
			}
		}
	})

	c.opts.Metrics.Resident(resident)
	c.opts.Metrics.KeepaliveActive(keepaliveActive)
}
