package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"emberdb"
)

var (
	benchOps                int
	benchCheckpointInterval int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Run the built-in benchmark suite against a fresh store",
		RunE:  benchRun,
	}
)

func init() {
	fs := benchCmd.Flags()
	fs.IntVar(&benchOps, "ops", 100000, "operations per benchmark")
	fs.IntVar(&benchCheckpointInterval, "checkpoint-interval", 50000,
		"mutations between automatic checkpoints (0 disables)")
	rootCmd.AddCommand(benchCmd)
}

type benchResult struct {
	name       string
	ops        int
	duration   time.Duration
	throughput float64 // ops/sec
	avgLatency float64 // microseconds
}

// measure runs op against a fresh store at --wal, removing any previous
// WAL and snapshot first.
func measure(name string, ops int, op func(db *emberdb.DB, n int) error) (benchResult, error) {
	os.Remove(walPath)
	os.Remove(walPath + ".snapshot")

	db, err := openStore(emberdb.WithCheckpointInterval(benchCheckpointInterval))
	if err != nil {
		return benchResult{}, err
	}
	defer db.Close()

	start := time.Now()
	if err := op(db, ops); err != nil {
		return benchResult{}, fmt.Errorf("%s: %w", name, err)
	}
	elapsed := time.Since(start)

	return benchResult{
		name:       name,
		ops:        ops,
		duration:   elapsed,
		throughput: float64(ops) / elapsed.Seconds(),
		avgLatency: elapsed.Seconds() * 1e6 / float64(ops),
	}, nil
}

func benchKey(i int) []byte {
	return fmt.Appendf(nil, "key_%08d", i)
}

func benchValue(i int) []byte {
	return fmt.Appendf(nil, "value_data_%d_xxxxx_padding_xxxxxxxx", i)
}

// shuffled returns 0..n-1 permuted by a deterministic LCG, so runs are
// comparable across machines.
func shuffled(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	seed := uint64(12345)
	for i := n - 1; i > 0; i-- {
		seed = (seed*1103515245 + 12345) & 0x7fffffff
		j := int(seed % uint64(i+1))
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

func benchRun(cmd *cobra.Command, args []string) error {
	fill := func(db *emberdb.DB, n int) error {
		for i := 0; i < n; i++ {
			if err := db.Put(benchKey(i), benchValue(i)); err != nil {
				return err
			}
		}
		return nil
	}

	benchmarks := []struct {
		name string
		ops  int
		op   func(db *emberdb.DB, n int) error
	}{
		{"sequential insert", benchOps, fill},
		{"random insert", benchOps, func(db *emberdb.DB, n int) error {
			for _, i := range shuffled(n) {
				if err := db.Put(benchKey(i), benchValue(i)); err != nil {
					return err
				}
			}
			return nil
		}},
		{"sequential read", benchOps, func(db *emberdb.DB, n int) error {
			if err := fill(db, n); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				if _, err := db.Get(benchKey(i)); err != nil {
					return err
				}
			}
			return nil
		}},
		{"random read", benchOps, func(db *emberdb.DB, n int) error {
			if err := fill(db, n); err != nil {
				return err
			}
			for _, i := range shuffled(n) {
				if _, err := db.Get(benchKey(i)); err != nil {
					return err
				}
			}
			return nil
		}},
		{"full scan", benchOps, func(db *emberdb.DB, n int) error {
			if err := fill(db, n); err != nil {
				return err
			}
			db.ForEach(func(_, _ []byte) bool { return true })
			return nil
		}},
		{"delete", benchOps, func(db *emberdb.DB, n int) error {
			if err := fill(db, n); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				if err := db.Delete(benchKey(i)); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	var results []benchResult
	for _, b := range benchmarks {
		log.Infof("running %s (%d ops)", b.name, b.ops)
		res, err := measure(b.name, b.ops, b.op)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Benchmark", "Ops", "Duration", "Throughput", "Avg Latency"})
	for _, r := range results {
		tw.Append([]string{
			r.name,
			fmt.Sprintf("%d", r.ops),
			r.duration.Round(time.Millisecond).String(),
			formatThroughput(r.throughput),
			fmt.Sprintf("%.2f us", r.avgLatency),
		})
	}
	tw.Render()
	return nil
}

func formatThroughput(opsPerSec float64) string {
	switch {
	case opsPerSec >= 1e6:
		return fmt.Sprintf("%.2fM ops/s", opsPerSec/1e6)
	case opsPerSec >= 1e3:
		return fmt.Sprintf("%.2fK ops/s", opsPerSec/1e3)
	default:
		return fmt.Sprintf("%.0f ops/s", opsPerSec)
	}
}
