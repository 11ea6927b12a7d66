// Package bench is a load harness that drives raw-KV operations
// through the region router against a coordinator-arranged keyspace and
// reports throughput and latency percentiles.
package bench

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/coordinator"
	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/util/engine_util"
	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/router"
)

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Runner owns one benchmark execution: region arrangement, worker
// pool, periodic reporting and the stop flag.
type Runner struct {
	cfg     Config
	control *coordinator.Control
	router  *router.RegionRouter
	store   storage.Storage

	stop     int32
	interval *Stats
	total    *Stats
	mu       sync.Mutex
}

func NewRunner(cfg Config, control *coordinator.Control, store storage.Storage) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		control:  control,
		router:   router.NewRegionRouter(control),
		store:    store,
		interval: NewStats(),
		total:    NewStats(),
	}, nil
}

// Stop requests a cooperative shutdown; workers observe it between
// requests.
func (r *Runner) Stop() {
	atomic.StoreInt32(&r.stop, 1)
}

func (r *Runner) stopped() bool {
	return atomic.LoadInt32(&r.stop) == 1
}

// Total returns the cumulative stats of the run.
func (r *Runner) Total() *Stats {
	return r.total
}

func (r *Runner) subPrefix(i int) []byte {
	return []byte(fmt.Sprintf("%s%03d", r.cfg.Prefix, i))
}

// arrangeRegions registers pseudo-stores when the cluster is empty and
// carves the benchmark keyspace into region_num regions named
// Benchmark_<i>.
func (r *Runner) arrangeRegions() error {
	if len(r.control.GetStores()) == 0 {
		for i := 0; i < 3; i++ {
			if _, err := r.control.CreateStore(meta.Location{
				Host: "127.0.0.1", Port: int32(20160 + i),
			}); err != nil {
				return err
			}
		}
	}
	for i := 0; i < r.cfg.RegionNum; i++ {
		rng := meta.Range{StartKey: meta.EncodeRawKey(r.subPrefix(i))}
		if i+1 < r.cfg.RegionNum {
			rng.EndKey = meta.EncodeRawKey(r.subPrefix(i + 1))
		} else {
			rng.EndKey = meta.EncodeRawKey(append([]byte(r.cfg.Prefix), '~'))
		}
		name := fmt.Sprintf("Benchmark_%d", i)
		if _, err := r.control.CreateRegion(name, meta.RegionTypeStore, 0, rng); err != nil {
			return err
		}
	}
	return nil
}

// randKey builds a key under a random benchmark region, padded with
// alphabet bytes to key_size.
func (r *Runner) randKey(rnd *rand.Rand) []byte {
	key := append([]byte(nil), r.subPrefix(rnd.Intn(r.cfg.RegionNum))...)
	for len(key) < r.cfg.KeySize {
		key = append(key, keyAlphabet[rnd.Intn(len(keyAlphabet))])
	}
	return key
}

func randValue(rnd *rand.Rand, size int) []byte {
	value := make([]byte, size)
	for i := range value {
		value[i] = keyAlphabet[rnd.Intn(len(keyAlphabet))]
	}
	return value
}

// Run arranges the keyspace and drives the configured operation from
// concurrency workers until req_num is consumed or the time limit
// fires.
func (r *Runner) Run(ctx context.Context) error {
	info := r.control.Hello()
	log.Info("benchmark starting",
		zap.String("version", info.Version),
		zap.String("benchmark", r.cfg.Benchmark),
		zap.Int("regions", r.cfg.RegionNum),
		zap.Int("concurrency", r.cfg.Concurrency))

	if err := r.arrangeRegions(); err != nil {
		return err
	}

	if r.cfg.TimeLimit > 0 {
		timer := time.AfterFunc(r.cfg.TimeLimit, r.Stop)
		defer timer.Stop()
	}

	reporterDone := make(chan struct{})
	workersDone := make(chan struct{})
	go r.reportLoop(reporterDone, workersDone)

	perWorker := 0
	if r.cfg.ReqNum > 0 {
		perWorker = (r.cfg.ReqNum + r.cfg.Concurrency - 1) / r.cfg.Concurrency
	}

	begin := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r.worker(ctx, rand.New(rand.NewSource(seed)), perWorker)
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()
	close(workersDone)
	<-reporterDone

	fmt.Println(r.total.Report(r.cfg.Benchmark+"/total", time.Since(begin)))
	return nil
}

// currentInterval returns the live interval stats; the reporter swaps
// the pointer on every tick.
func (r *Runner) currentInterval() *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *Runner) worker(ctx context.Context, rnd *rand.Rand, reqNum int) {
	for i := 0; reqNum == 0 || i < reqNum; i++ {
		if r.stopped() {
			return
		}
		begin := time.Now()
		writeBytes, readBytes, err := r.execute(ctx, rnd)
		if err != nil {
			r.currentInterval().RecordError()
			continue
		}
		r.currentInterval().Record(time.Since(begin), writeBytes, readBytes)
	}
}

func (r *Runner) execute(ctx context.Context, rnd *rand.Rand) (int, int, error) {
	switch r.cfg.Benchmark {
	case BenchmarkPut:
		return r.opPut(ctx, rnd, 1)
	case BenchmarkBatchPut:
		return r.opPut(ctx, rnd, r.cfg.BatchSize)
	case BenchmarkGet:
		return r.opGet(ctx, rnd)
	case BenchmarkScan:
		return r.opScan(ctx, rnd)
	}
	return 0, 0, fmt.Errorf("unknown benchmark %q", r.cfg.Benchmark)
}

func (r *Runner) opPut(ctx context.Context, rnd *rand.Rand, count int) (int, int, error) {
	batch := make([]storage.Modify, 0, count)
	written := 0
	for i := 0; i < count; i++ {
		key := meta.EncodeRawKey(r.randKey(rnd))
		if _, err := r.router.LookupRegionByKey(key); err != nil {
			return 0, 0, err
		}
		value := randValue(rnd, r.cfg.ValueSize)
		batch = append(batch, storage.Modify{Data: storage.Put{
			Cf: engine_util.CfDefault, Key: key, Value: value,
		}})
		written += len(key) + len(value)
	}
	if err := r.store.Write(ctx, batch); err != nil {
		return 0, 0, err
	}
	return written, 0, nil
}

func (r *Runner) opGet(ctx context.Context, rnd *rand.Rand) (int, int, error) {
	key := meta.EncodeRawKey(r.randKey(rnd))
	if _, err := r.router.LookupRegionByKey(key); err != nil {
		return 0, 0, err
	}
	reader, err := r.store.Reader(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer reader.Close()
	value, err := reader.GetCF(engine_util.CfDefault, key)
	if err != nil {
		return 0, 0, err
	}
	return 0, len(key) + len(value), nil
}

func (r *Runner) opScan(ctx context.Context, rnd *rand.Rand) (int, int, error) {
	seek := meta.EncodeRawKey(r.randKey(rnd))
	if _, err := r.router.LookupRegionByKey(seek); err != nil {
		return 0, 0, err
	}
	reader, err := r.store.Reader(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer reader.Close()

	bound := meta.EncodeRawKey(append([]byte(r.cfg.Prefix), '~'))
	read := 0
	count := 0
	iter := reader.IterCF(engine_util.CfDefault)
	defer iter.Close()
	for iter.Seek(seek); iter.Valid() && count < r.cfg.BatchSize; iter.Next() {
		item := iter.Item()
		if bytes.Compare(item.Key(), bound) >= 0 {
			break
		}
		value, err := item.Value()
		if err != nil {
			return 0, read, err
		}
		read += len(item.Key()) + len(value)
		count++
	}
	return 0, read, nil
}

// reportLoop prints the interval stats every delay and folds them into
// the cumulative stats.
func (r *Runner) reportLoop(done, workersDone chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Delay)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flushInterval()
		case <-workersDone:
			r.flushInterval()
			return
		}
	}
}

func (r *Runner) flushInterval() {
	r.mu.Lock()
	window := r.interval
	r.interval = NewStats()
	r.mu.Unlock()
	if window.Requests() == 0 {
		return
	}
	fmt.Println(window.Report(r.cfg.Benchmark, r.cfg.Delay))
	r.total.Merge(window)
}
