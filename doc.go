package dingokv

/*
DingoKV is a distributed key/value and vector store. This module holds the
metadata control plane and the pieces a client or node needs to talk to it.

The module is organized into the following packages:

* `coordinator`: the cluster metadata control plane. Monotonic id and epoch
  counters, the schema/table/index/region hierarchy, vector index definition
  validation, region partitioning and metrics aggregation.
* `router`: the client-side region cache. Routes keys to regions and invalidates
  stale entries when the stores report routing failures.
* `kv`: the store-side building blocks: storage engines, the multi-version
  transaction layer, and engine utilities.
* `meta`: the metadata types shared between the coordinator and its clients.
* `status`: error codes and construction helpers used across the module.
* `bench`: a load harness driving raw operations through the router, with a
  CLI under `cmd/bench`.
*/
