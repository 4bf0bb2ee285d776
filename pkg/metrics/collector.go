package metrics

import "time"

// sessionCounter is satisfied by *sessioncache.Cache. Defined here
// rather than imported directly so metrics doesn't need to depend on
// sessioncache just for this one gauge.
type sessionCounter interface {
	Count() int
}

// Collector polls a session cache on an interval and republishes its
// size as a gauge; everything else in this package is updated inline
// by the code that performs the operation (see Timer), a periodic
// collector only makes sense for state that has no single call site.
type Collector struct {
	cache  sessionCounter
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over cache.
func NewCollector(cache sessionCounter) *Collector {
	return &Collector{cache: cache, stopCh: make(chan struct{})}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	SessionsActive.Set(float64(c.cache.Count()))
}
