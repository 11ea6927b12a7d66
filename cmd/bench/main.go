package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/bench"
	"github.com/dingodb/dingokv/coordinator"
	"github.com/dingodb/dingokv/kv/config"
	"github.com/dingodb/dingokv/kv/storage"
	"github.com/dingodb/dingokv/kv/storage/standalone_storage"
)

var (
	coordinatorURL = flag.String("coordinator_url", "", "coordinator metadata path, empty runs in memory")
	prefix         = flag.String("prefix", "BENCH", "key prefix of the benchmark keyspace")
	regionNum      = flag.Int("region_num", 1, "number of regions to carve the keyspace into")
	concurrency    = flag.Int("concurrency", 1, "number of concurrent workers")
	reqNum         = flag.Int("req_num", 10000, "total number of requests, 0 means unbounded")
	timelimit      = flag.Duration("timelimit", 0, "stop after this duration, 0 means no limit")
	delay          = flag.Duration("delay", 2*time.Second, "interval between progress reports")
	keySize        = flag.Int("key_size", 64, "key size in bytes")
	valueSize      = flag.Int("value_size", 256, "value size in bytes")
	batchSize      = flag.Int("batch_size", 16, "keys per batch_put or scan")
	benchmark      = flag.String("benchmark", bench.BenchmarkPut, "one of put, batch_put, get, scan")
	dbPath         = flag.String("db_path", "", "data directory, empty runs on an in-memory store")
)

func main() {
	flag.Parse()

	cfg := bench.Config{
		CoordinatorURL: *coordinatorURL,
		Prefix:         *prefix,
		RegionNum:      *regionNum,
		Concurrency:    *concurrency,
		ReqNum:         *reqNum,
		TimeLimit:      *timelimit,
		Delay:          *delay,
		KeySize:        *keySize,
		ValueSize:      *valueSize,
		BatchSize:      *batchSize,
		Benchmark:      *benchmark,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid benchmark config", zap.Error(err))
	}

	control, err := coordinator.NewControl(cfg.CoordinatorURL, coordinator.NewMemAutoIncrement())
	if err != nil {
		log.Fatal("open coordinator", zap.Error(err))
	}
	defer control.Close()

	store := openStorage()
	if err := store.Start(); err != nil {
		log.Fatal("start storage", zap.Error(err))
	}
	defer store.Stop()

	runner, err := bench.NewRunner(cfg, control, store)
	if err != nil {
		log.Fatal("build runner", zap.Error(err))
	}
	handleSignal(runner)

	if err := runner.Run(context.Background()); err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
}

func openStorage() storage.Storage {
	if *dbPath == "" {
		return storage.NewMemStorage()
	}
	conf := config.NewDefaultConfig()
	conf.DBPath = *dbPath
	return standalone_storage.NewStandAloneStorage(conf)
}

func handleSignal(runner *bench.Runner) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Info("stopping on signal", zap.Stringer("signal", sig))
		runner.Stop()
	}()
}
