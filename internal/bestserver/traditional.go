package bestserver

import (
	"time"
)

// TraditionalConfig defines all the public parameters the resolver engine's caller can set for
// the traditional nameserver-rotation algorithm. Currently empty -- there is nothing to tune about
// "try the next one on failure" -- but kept as a struct rather than removed entirely so a future
// tunable (e.g. a max-consecutive-failures threshold) doesn't need an API-breaking parameter added
// to NewTraditional.
type TraditionalConfig struct {
}

var (
	defaultTraditionalConfig = TraditionalConfig{}
)

type traditional struct {
	TraditionalConfig
	baseManager
}

func NewTraditional(config TraditionalConfig, servers []Server) (*traditional, error) {
	t := &traditional{}
	err := t.baseManager.init(TraditionalAlgorithm, servers)
	if err != nil {
		return nil, err
	}

	return t, err
}

func (t *traditional) Result(server Server, success bool, now time.Time, latency time.Duration) bool {
	t.lock()
	defer t.unlock()

	ix, found := t.serverToIndex[server]
	if !found {
		return false
	}

	if success {
		return true
	}

	if ix == t.bestIndex { // If 'best' failed, move to next server.
		t.bestIndex = (t.bestIndex + 1) % t.serverCount
	}

	return true
}
