package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
)

var (
	events = []string{
		"sched_switch",
		"sched_wakeup",
		"sched_waking",
		"irq_handler_entry",
		"irq_handler_exit",
		"softirq_entry",
		"softirq_exit",
		"cpu_idle",
		"cpu_frequency",
		"sched_migrate_task",
		"sched_process_fork",
		"sched_process_exit",
	}
	comms = []string{
		"swapper/0",
		"bash",
		"kworker/0:1",
		"systemd",
		"Xorg",
		"firefox",
		"rcu_sched",
		"ksoftirqd/1",
	}
)

const wordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789_=:/."

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s; s=1.0 is standard Zipf, larger s is more skewed.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform over the cumulative weights.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Word returns a random token of 1 to maxLen bytes without blanks.
func (r *RNG) Word(maxLen int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wordLocked(maxLen)
}

func (r *RNG) wordLocked(maxLen int) string {
	if maxLen < 1 {
		maxLen = 1
	}
	b := make([]byte, 1+r.rand.Intn(maxLen))
	for i := range b {
		b[i] = wordAlphabet[r.rand.Intn(len(wordAlphabet))]
	}
	return string(b)
}

// Words returns n random tokens of up to maxLen bytes.
func (r *RNG) Words(n, maxLen int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, n)
	for i := range out {
		out[i] = r.wordLocked(maxLen)
	}
	return out
}

// TraceLine returns one ftrace event line at timestamp ts, without the
// trailing newline.
func (r *RNG) TraceLine(ts float64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traceLineLocked(ts)
}

func (r *RNG) traceLineLocked(ts float64) string {
	comm := comms[r.rand.Intn(len(comms))]
	pid := r.rand.Intn(32768)
	cpu := r.rand.Intn(8)
	event := events[r.zipfLocked(len(events), 1.2)]

	var args string
	switch event {
	case "sched_switch":
		next := comms[r.rand.Intn(len(comms))]
		args = fmt.Sprintf("prev_comm=%s prev_pid=%d prev_prio=120 prev_state=S ==> next_comm=%s next_pid=%d next_prio=120",
			comm, pid, next, r.rand.Intn(32768))
	case "sched_wakeup", "sched_waking":
		args = fmt.Sprintf("comm=%s pid=%d prio=120 target_cpu=%03d", comm, pid, r.rand.Intn(8))
	case "cpu_idle":
		args = fmt.Sprintf("state=%d cpu_id=%d", r.rand.Intn(4), cpu)
	case "cpu_frequency":
		args = fmt.Sprintf("state=%d cpu_id=%d", 800000+r.rand.Intn(16)*100000, cpu)
	default:
		args = fmt.Sprintf("irq=%d name=%s", r.rand.Intn(256), r.wordLocked(10))
	}

	return fmt.Sprintf("%16s-%-5d [%03d] d..%d %12.6f: %s: %s", comm, pid, cpu, r.rand.Intn(4), ts, event, args)
}

// Trace returns a trace with an ftrace header followed by n event lines
// with increasing timestamps. Every line ends with a newline.
func (r *RNG) Trace(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("# tracer: nop\n#\n")
	sb.WriteString("#           TASK-PID   CPU#  ||||    TIMESTAMP  FUNCTION\n")
	ts := 1000.0
	for range n {
		ts += float64(1+r.rand.Intn(1000)) / 1e6
		sb.WriteString(r.traceLineLocked(ts))
		sb.WriteByte('\n')
	}
	return sb.String()
}
