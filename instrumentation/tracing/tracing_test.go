package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingTracer struct {
	started, stepped, ended []Task
}

func (t *recordingTracer) StartTask(task Task) { t.started = append(t.started, task) }
func (t *recordingTracer) StepTask(task Task)  { t.stepped = append(t.stepped, task) }
func (t *recordingTracer) EndTask(task Task)   { t.ended = append(t.ended, task) }

var _ = Describe("Task API", func() {
	var (
		domain *sampleDomain
		tracer *recordingTracer
	)

	BeforeEach(func() {
		domain = newSampleDomain()
		tracer = &recordingTracer{}
	})

	It("should not build tasks when nobody listens", func() {
		Expect(func() {
			StartTask("", "", domain, "", "", nil)
		}).NotTo(Panic())
	})

	It("should deliver tasks to the tracer", func() {
		CollectTrace(domain, tracer)

		StartTask("1", "0", domain, KindProcess, "prog", nil)
		AddTaskStep("1", domain, "dispatch")
		EndTask("1", domain)

		Expect(tracer.started).To(HaveLen(1))
		Expect(tracer.started[0].Location).To(Equal("Sample"))
		Expect(tracer.started[0].ParentID).To(Equal("0"))
		Expect(tracer.stepped[0].Steps[0].What).To(Equal("dispatch"))
		Expect(tracer.ended[0].ID).To(Equal("1"))
	})

	It("should reject a task without an ID", func() {
		CollectTrace(domain, tracer)

		Expect(func() {
			StartTask("", "", domain, KindProcess, "prog", nil)
		}).To(Panic())
	})

	It("should not attach the same tracer twice", func() {
		CollectTrace(domain, tracer)

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})
})

var _ = Describe("StepCountTracer", func() {
	It("should count steps of filtered tasks only", func() {
		domain := newSampleDomain()
		tracer := NewStepCountTracer(KindIs(KindProcess))
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, KindProcess, "a", nil)
		StartTask("2", "", domain, KindThread, "t", nil)
		AddTaskStep("1", domain, "preempt")
		AddTaskStep("1", domain, "preempt")
		AddTaskStep("2", domain, "preempt")
		AddTaskStep("1", domain, "page_fault")
		EndTask("1", domain)
		AddTaskStep("1", domain, "preempt")

		Expect(tracer.GetStepNames()).To(Equal([]string{"preempt", "page_fault"}))
		Expect(tracer.GetStepCount("preempt")).To(Equal(uint64(2)))
		Expect(tracer.GetTaskCount("preempt")).To(Equal(uint64(1)))
		Expect(tracer.GetStepCount("page_fault")).To(Equal(uint64(1)))
	})
})

var _ = Describe("TotalTimeTracer", func() {
	It("should add up task durations", func() {
		domain := newSampleDomain()
		clock := &testTimeTeller{}
		tracer := NewTotalTimeTracer(clock, KindIs(KindProcess))
		CollectTrace(domain, tracer)

		clock.now = 2
		StartTask("1", "", domain, KindProcess, "a", nil)
		StartTask("2", "", domain, KindProcess, "b", nil)
		clock.now = 5
		EndTask("1", domain)
		clock.now = 12
		EndTask("2", domain)

		Expect(tracer.TotalTime()).To(BeEquivalentTo(13))
		Expect(tracer.TaskCount()).To(Equal(2))
		Expect(tracer.AverageTime()).To(BeNumerically("~", 6.5))
	})
})
