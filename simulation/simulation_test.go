package simulation

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/osim/datarecording"
	"github.com/sarchlab/osim/instrumentation/tracing"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/scheduling"
)

var _ = Describe("Simulation", func() {
	var (
		dir      string
		out      *bytes.Buffer
		executed []string
		builder  Builder
		sim      *Simulation
	)

	record := scheduling.ExecutorFunc(func(line string) int {
		executed = append(executed, line)
		return 0
	})

	build := func() {
		sim = builder.Build()
		sim.RegisterExecutor(record)
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = new(bytes.Buffer)
		executed = nil
		builder = MakeBuilder().
			WithBackingStoreDir(filepath.Join(dir, "backing_store")).
			WithOutput(out)
	})

	AfterEach(func() {
		if sim != nil {
			Expect(sim.Terminate()).To(Succeed())
			sim = nil
		}
	})

	It("should register its components", func() {
		build()

		Expect(sim.GetComponentByName("Pager")).To(BeIdenticalTo(sim.GetPager()))
		Expect(sim.GetComponentByName("Scheduler")).
			To(BeIdenticalTo(sim.GetScheduler()))
		Expect(sim.GetComponentByName("Nothing")).To(BeNil())
		Expect(sim.Components()).To(HaveLen(5))
		Expect(sim.GetFrameStore().NumFrames()).To(Equal(10))
	})

	It("should panic on an unknown eviction policy", func() {
		Expect(func() { builder.WithEviction("fifo").Build() }).To(Panic())
	})

	It("should panic if a monitor port is set without monitoring", func() {
		Expect(func() { builder.WithMonitorPort(8080).Build() }).To(Panic())
	})

	It("should run one script to completion", func() {
		build()
		a := writeScript(dir, "a", "echo A1", "echo A2", "echo A3")

		Expect(sim.Run(a)).To(Succeed())

		Expect(executed).To(Equal([]string{"echo A1", "echo A2", "echo A3"}))
		Expect(sim.GetRegistry().Scripts()).To(BeEmpty())
	})

	It("should run the shortest job first", func() {
		build()
		a := writeScript(dir, "a", "echo A1", "echo A2", "echo A3")
		b := writeScript(dir, "b", "echo B1")

		Expect(sim.Exec([]string{a, b}, scheduling.SJF)).To(Succeed())

		Expect(executed).
			To(Equal([]string{"echo B1", "echo A1", "echo A2", "echo A3"}))
	})

	It("should interleave under round robin and count preemptions", func() {
		build()
		a := writeScript(dir, "a", "A1", "A2", "A3", "A4")
		b := writeScript(dir, "b", "B1", "B2", "B3", "B4")

		Expect(sim.Exec([]string{a, b}, scheduling.RR)).To(Succeed())

		Expect(executed).To(Equal(
			[]string{"A1", "A2", "B1", "B2", "A3", "A4", "B3", "B4"}))

		stats := sim.Stats()
		Expect(stats.Processes).To(Equal(2))
		Expect(stats.Preemptions).To(Equal(uint64(2)))
		Expect(stats.PageFaults).To(BeZero())
		Expect(stats.Cycles).To(BeNumerically(">", 0))
	})

	It("should share a script named twice", func() {
		build()
		a := writeScript(dir, "a", "A1", "A2")

		Expect(sim.Exec([]string{a, a}, scheduling.FCFS)).To(Succeed())

		Expect(executed).To(Equal([]string{"A1", "A2", "A1", "A2"}))
		Expect(sim.GetRegistry().Scripts()).To(BeEmpty())
	})

	It("should not start anything if one script is missing", func() {
		build()
		a := writeScript(dir, "a", "A1")

		err := sim.Exec([]string{a, filepath.Join(dir, "missing")}, scheduling.FCFS)

		Expect(err).To(MatchError(kernel.ErrScriptNotFound))
		Expect(executed).To(BeEmpty())
		Expect(sim.GetRegistry().Scripts()).To(BeEmpty())
	})

	It("should preload the first two pages", func() {
		build()
		a := writeScript(dir, "a", "1", "2", "3", "4", "5", "6", "7")

		Expect(sim.Run(a)).To(Succeed())

		Expect(out.String()).To(Equal("Page fault!\n"))
		Expect(sim.Stats().PageFaults).To(Equal(1))
	})

	It("should report the victim page when the frame store is full", func() {
		builder = builder.WithFrameStoreSize(3)
		build()
		a := writeScript(dir, "a", "echo a", "echo b", "echo c", "echo d")

		Expect(sim.Run(a)).To(Succeed())

		Expect(out.String()).To(Equal("Page fault! Victim page contents:\n\n" +
			"echo a\necho b\necho c\n\nEnd of victim page contents.\n"))
		Expect(executed).To(HaveLen(4))

		stats := sim.Stats()
		Expect(stats.PageFaults).To(Equal(1))
		Expect(stats.Evictions).To(Equal(uint64(1)))
	})

	It("should evict with the random policy", func() {
		builder = builder.WithFrameStoreSize(3).
			WithEviction(EvictionRandom).
			WithSeed(7)
		build()
		a := writeScript(dir, "a", "1", "2", "3", "4", "5", "6", "7")

		Expect(sim.Run(a)).To(Succeed())

		Expect(executed).To(HaveLen(7))
		Expect(sim.Stats().Evictions).To(Equal(uint64(2)))
	})

	It("should run every line once under the thread policy", func() {
		build()
		a := writeScript(dir, "a", "L1", "L2", "L3", "L4", "L5")

		Expect(sim.Exec([]string{a}, scheduling.MT)).To(Succeed())

		Expect(executed).To(ConsistOf("L1", "L2", "L3", "L4", "L5"))
		Expect(executed).To(HaveLen(5))
	})

	It("should release everything when a script quits", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		executor := NewMockExecutor(mockCtrl)
		executor.EXPECT().Execute("quit").Return(-1)

		sim = builder.Build()
		sim.RegisterExecutor(executor)
		a := writeScript(dir, "a", "quit", "echo never")
		b := writeScript(dir, "b", "echo never")

		err := sim.Exec([]string{a, b}, scheduling.FCFS)

		Expect(err).To(MatchError(scheduling.ErrHalted))
		Expect(sim.GetRegistry().Scripts()).To(BeEmpty())
	})

	It("should let a running script start another one", func() {
		sim = builder.Build()
		inner := writeScript(dir, "inner", "I1")
		outer := writeScript(dir, "outer", "run", "O2")

		sim.RegisterExecutor(scheduling.ExecutorFunc(func(line string) int {
			executed = append(executed, line)
			if line == "run" {
				Expect(sim.Run(inner)).To(Succeed())
			}

			return 0
		}))

		Expect(sim.Run(outer)).To(Succeed())

		Expect(executed).To(Equal([]string{"run", "O2", "I1"}))
	})

	It("should log paging and scheduling activity", func() {
		buf := new(bytes.Buffer)
		builder = builder.WithLogger(log.New(buf, "", 0))
		build()
		a := writeScript(dir, "a", "A1")

		Expect(sim.Run(a)).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("ScriptLoad"))
		Expect(buf.String()).To(ContainSubstring("ProcessEnd"))
		Expect(buf.String()).To(ContainSubstring("ScriptTeardown"))
	})

	It("should remove the backing store on terminate", func() {
		build()

		Expect(sim.Terminate()).To(Succeed())
		sim = nil

		_, err := os.Stat(filepath.Join(dir, "backing_store"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("should record traces into the database", func() {
		dbName := filepath.Join(dir, "trace")
		builder = builder.WithTraceDB(dbName)
		build()
		a := writeScript(dir, "a", "A1", "A2")
		b := writeScript(dir, "b", "B1")

		Expect(sim.Exec([]string{a, b}, scheduling.FCFS)).To(Succeed())
		Expect(sim.Terminate()).To(Succeed())
		sim = nil

		reader, err := datarecording.NewReader(dbName + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(tracing.TaskTable, tracing.TaskEntry{})
		rows, err := reader.Query(context.Background(), tracing.TaskTable,
			datarecording.QueryParams{
				Where:   "Kind = ?",
				Args:    []any{tracing.KindProcess},
				OrderBy: "ID",
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].(*tracing.TaskEntry).What).To(Equal(a))
	})
})
