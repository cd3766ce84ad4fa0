// Command assetcachectl runs a synthetic asset-loading workload against
// an AssetCache and exposes its timeline and Prometheus metrics for
// inspection, mirroring the way cmd/bench drives the sharded cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/ivbrykalov/assetcache/assetcache"
	"github.com/ivbrykalov/assetcache/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type blobKey struct {
	assetcache.BaseKey[*[]byte]
	n int
}

func (k blobKey) String() string   { return "blob:" + strconv.Itoa(k.n) }
func (k blobKey) LongName() string { return fmt.Sprintf("blob %d", k.n) }
func (k blobKey) Load(ctx context.Context, cache *assetcache.AssetCache) *[]byte {
	time.Sleep(time.Millisecond) // stand-in for a decode/fetch
	b := make([]byte, 64)
	return &b
}
func (k blobKey) Keepalive() assetcache.Keepalive   { return assetcache.Timeout(2 * time.Second) }
func (k blobKey) Asset() assetcache.Asset[*[]byte] { return assetcache.PointerAsset[[]byte]{} }

func main() {
	var (
		shards   = flag.Int("shards", 0, "slot-map shards (0=auto)")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 5*time.Second, "workload duration")
		keys     = flag.Int("keys", 10_000, "keyspace size")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		httpAddr  = flag.String("http", ":8080", "serve /metrics and /timeline at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	metrics := prom.New(nil, "assetcache", "ctl", nil)
	cache := assetcache.New(assetcache.Options{Shards: *shards, Metrics: metrics})
	defer func() { _ = cache.Close() }()

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/timeline", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cache.Timeline()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	go func() {
		log.Printf("http: serving /metrics and /timeline at %s", *httpAddr)
		log.Println(http.ListenAndServe(*httpAddr, nil))
	}()

	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	seedBase := *seed
	keysN := *keys

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				k := blobKey{n: r.Intn(keysN)}
				if _, err := assetcache.Get(ctx, cache, k); err != nil {
					continue
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("shards=%d workers=%d keys=%d dur=%v seed=%d elapsed=%v\n",
		*shards, workersN, keysN, *duration, seedBase, elapsed)
	fmt.Printf("loading=%d\n", cache.Timeline().NLoading())
	hits, misses := cache.HitStats()
	fmt.Printf("hits=%d misses=%d\n", hits, misses)
}
