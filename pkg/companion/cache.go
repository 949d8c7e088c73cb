package companion

import (
	"sync"
	"time"

	"github.com/go2atv/go2atv/pkg/core"
	"github.com/rs/zerolog"
)

// Two-phase pairing runs setup and verify on separate logical sessions;
// keeping released connections warm for a while avoids reopening sockets.
const cacheIdleTimeout = time.Second * 120

var (
	cacheMu sync.Mutex
	cache   = map[string]*cacheEntry{}
)

type cacheEntry struct {
	client *Client
	idle   *core.Worker
}

// AcquireClient returns a cached idle connection to host:port or dials a
// new one.
func AcquireClient(address, name string, log zerolog.Logger) (*Client, error) {
	cacheMu.Lock()
	entry := cache[address]
	if entry != nil {
		delete(cache, address)
	}
	cacheMu.Unlock()

	if entry != nil {
		entry.idle.Stop()
		entry.client.Name = name
		return entry.client, nil
	}

	return DialClient(address, name, log)
}

// ReleaseClient parks an idle connection for reuse. Listeners are detached
// so in-flight events do not surface after release; the entry dies after
// the idle timeout or as soon as the connection errors.
func ReleaseClient(address string, c *Client) {
	c.ClearEventListeners()

	entry := &cacheEntry{client: c}
	entry.idle = core.NewWorker(cacheIdleTimeout, func() time.Duration {
		dropCached(address, entry)
		_ = c.Close()
		return 0
	})

	cacheMu.Lock()
	if old := cache[address]; old != nil {
		old.idle.Stop()
		_ = old.client.Close()
	}
	cache[address] = entry
	cacheMu.Unlock()

	go func() {
		_ = c.Wait()
		if dropCached(address, entry) {
			entry.idle.Stop()
		}
	}()
}

func dropCached(address string, entry *cacheEntry) bool {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cache[address] != entry {
		return false
	}
	delete(cache, address)
	return true
}
