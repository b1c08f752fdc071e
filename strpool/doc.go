// Package strpool interns byte strings.
//
// A Pool maps each distinct byte sequence to one canonical Record. Values are
// spread over a fixed number of buckets by CRC32C; every bucket is an AVL tree
// ordered by bytes.Compare. Record headers and string bytes live in two
// mempool arenas, so interning a new value costs two reservations and no
// per-string heap allocation. Values longer than Config.MaxLen are the
// exception: they are copied to the heap and charged to the memory acquirer.
//
// Every bucket counts allocations (first sight of a value) and reuses
// (repeated sight). Stats aggregates them; BucketStats exposes one slot.
//
//	pool, err := strpool.New(strpool.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	rec, err := pool.Intern([]byte("sched_switch"))
//
// Clear drops every record while keeping arena memory. Records handed out
// before a Clear are stale; Pool.Valid reports whether a record belongs to
// the current epoch.
package strpool
