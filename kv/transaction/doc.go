package transaction

// The transaction package implements the multi-version transaction layer.
// Transactions are collaborative between the store and its clients: a client
// drives a transaction through prewrite, commit and rollback steps, and this
// layer lowers each step into raw column-family reads and writes of the
// underlying storage (Storage in kv/storage).
//
// Within the `mvcc` package, `Lock` and `Write` provide abstractions for
// lowering locks and writes into simple keys and values. `MvccTxn` collects
// the modifications of a single step so they reach the storage engine as one
// atomic batch. `Scanner` iterates over user key/values as of a timestamp,
// rather than over the encoded key/values stored in the DB.
//
// ## Encoding user key/values
//
// The mvcc strategy is to store all data (committed and uncommitted) at every
// point in time. If a value is written for a key and later logically
// overwritten, both values are preserved in the underlying storage.
//
// This is implemented by encoding user keys with their timestamps (the
// starting timestamp of the transaction in which they are written) to make an
// encoded key (see kv/util/codec). The `default` CF is a mapping from encoded
// keys to their values.
//
// Locking a key means writing into the `lock` CF. In this CF, we use the user
// key (i.e., not the encoded key so that a key is locked for all timestamps).
// The value in the `lock` CF consists of the 'primary key' for the
// transaction, the kind of lock (for 'put', 'delete', or 'rollback'), the
// start timestamp of the transaction, and the lock's ttl (time to live). See
// mvcc/lock.go for the implementation.
//
// The status of values is stored in the `write` CF. Here we map keys encoded
// with their commit timestamps (i.e., the time at which a transaction is
// committed) to a value containing the transaction's starting timestamp, and
// the kind of write ('put', 'delete', or 'rollback'). Note that for
// transactions which are rolled back, the start timestamp is used for the
// commit timestamp in the encoded key.
