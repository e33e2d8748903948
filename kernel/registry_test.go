package kernel

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/mem/backingstore"
)

var _ = Describe("Registry", func() {
	var (
		srcDir   string
		store    *backingstore.DiskStore
		registry *Registry
		events   []string
	)

	BeforeEach(func() {
		var err error

		srcDir = GinkgoT().TempDir()
		store, err = backingstore.New(filepath.Join(GinkgoT().TempDir(), "backing_store"))
		Expect(err).NotTo(HaveOccurred())

		registry = NewRegistry("Registry", store, 3)

		events = nil
		registry.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			events = append(events, ctx.Pos.Name)
		}))
	})

	It("should load a script into the backing store", func() {
		path := writeScript(srcDir, "prog", numberedLines("A", 4)...)

		ref, err := registry.Load(path)
		Expect(err).NotTo(HaveOccurred())

		s := ref.Script()
		Expect(s.Name()).To(Equal(path))
		Expect(s.NumLines()).To(Equal(4))
		Expect(s.NumPages()).To(Equal(2))
		Expect(s.RefCount()).To(Equal(1))
		Expect(s.PageTable().Mapped()).To(BeEmpty())
		Expect(s.Location()).To(BeAnExistingFile())
		Expect(events).To(Equal([]string{"ScriptLoad"}))
	})

	It("should share a script loaded twice", func() {
		path := writeScript(srcDir, "prog", numberedLines("A", 2)...)

		ref1, err := registry.Load(path)
		Expect(err).NotTo(HaveOccurred())
		ref2, err := registry.Load(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(ref2.Script()).To(BeIdenticalTo(ref1.Script()))
		Expect(ref1.Script().RefCount()).To(Equal(2))
		Expect(registry.Scripts()).To(HaveLen(1))
		Expect(events).To(Equal([]string{"ScriptLoad", "ScriptShare"}))
	})

	It("should tear a script down only when the last share is released", func() {
		path := writeScript(srcDir, "prog", numberedLines("A", 5)...)

		const n = 4

		refs := make([]*ScriptRef, n)
		for i := range refs {
			ref, err := registry.Load(path)
			Expect(err).NotTo(HaveOccurred())

			refs[i] = ref
		}

		location := refs[0].Script().Location()

		for i := 0; i < n-1; i++ {
			Expect(refs[i].Release()).To(Succeed())
			Expect(location).To(BeAnExistingFile())

			_, found := registry.Lookup(path)
			Expect(found).To(BeTrue())
		}

		Expect(refs[n-1].Release()).To(Succeed())
		Expect(location).NotTo(BeAnExistingFile())

		_, found := registry.Lookup(path)
		Expect(found).To(BeFalse())
		Expect(events[len(events)-1]).To(Equal("ScriptTeardown"))
	})

	It("should ignore a second release of the same share", func() {
		path := writeScript(srcDir, "prog", "echo hi")

		ref1, _ := registry.Load(path)
		ref2, _ := registry.Load(path)

		Expect(ref1.Release()).To(Succeed())
		Expect(ref1.Release()).To(Succeed())
		Expect(ref1.Released()).To(BeTrue())
		Expect(ref2.Script().RefCount()).To(Equal(1))
		Expect(ref2.Script().Location()).To(BeAnExistingFile())

		Expect(ref2.Release()).To(Succeed())
		Expect(ref2.Script().Location()).NotTo(BeAnExistingFile())
	})

	It("should reload a script after it was torn down", func() {
		path := writeScript(srcDir, "prog", "echo hi")

		ref1, _ := registry.Load(path)
		Expect(ref1.Release()).To(Succeed())

		ref2, err := registry.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref2.Script()).NotTo(BeIdenticalTo(ref1.Script()))
		Expect(ref2.Script().ID()).To(BeNumerically(">", ref1.Script().ID()))
	})

	It("should report a missing script", func() {
		_, err := registry.Load(filepath.Join(srcDir, "missing"))

		Expect(errors.Is(err, ErrScriptNotFound)).To(BeTrue())
		Expect(registry.Scripts()).To(BeEmpty())
		Expect(events).To(BeEmpty())
	})

	It("should list scripts in load order", func() {
		a := writeScript(srcDir, "a", "echo a")
		b := writeScript(srcDir, "b", "echo b")

		_, _ = registry.Load(b)
		_, _ = registry.Load(a)

		scripts := registry.Scripts()
		Expect(scripts).To(HaveLen(2))
		Expect(scripts[0].Name()).To(Equal(b))
		Expect(scripts[1].Name()).To(Equal(a))
	})

	Context("when the backing store fails", func() {
		var (
			mockCtrl  *gomock.Controller
			mockStore *MockStore
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mockStore = NewMockStore(mockCtrl)
			registry = NewRegistry("Registry", mockStore, 3)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should not register a script it could not write", func() {
			path := writeScript(srcDir, "prog", "echo hi")

			mockStore.EXPECT().
				Write(path, []string{"echo hi"}).
				Return("", os.ErrPermission)

			_, err := registry.Load(path)

			Expect(errors.Is(err, ErrStorage)).To(BeTrue())

			_, found := registry.Lookup(path)
			Expect(found).To(BeFalse())
		})

		It("should report a failure to remove the backing file", func() {
			path := writeScript(srcDir, "prog", "echo hi")

			mockStore.EXPECT().
				Write(path, []string{"echo hi"}).
				Return("loc", nil)
			mockStore.EXPECT().
				Remove("loc").
				Return(os.ErrPermission)

			ref, err := registry.Load(path)
			Expect(err).NotTo(HaveOccurred())

			err = ref.Release()
			Expect(errors.Is(err, ErrStorage)).To(BeTrue())

			_, found := registry.Lookup(path)
			Expect(found).To(BeFalse())
		})
	})
})
