package shell

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/scheduling"
)

var _ = Describe("Shell", func() {
	var (
		mockCtrl *gomock.Controller
		machine  *MockMachine
		out      *bytes.Buffer
		dir      string
		sh       *Shell
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		machine = NewMockMachine(mockCtrl)
		out = new(bytes.Buffer)
		dir = GinkgoT().TempDir()
		sh = MakeBuilder().
			WithMachine(machine).
			WithOutput(out).
			WithWorkingDir(dir).
			Build("Shell")
	})

	It("should print the help text", func() {
		Expect(sh.Execute("help")).To(Equal(CodeOK))
		Expect(out.String()).To(Equal(HelpText + "\n"))
	})

	It("should say bye and stop the line on quit", func() {
		Expect(sh.Execute("quit; echo after")).To(Equal(CodeQuit))
		Expect(out.String()).To(Equal("Bye!\n"))
	})

	It("should reject unknown commands and wrong argument counts", func() {
		Expect(sh.Execute("frobnicate")).To(Equal(CodeBadCommand))
		Expect(sh.Execute("help me")).To(Equal(CodeBadCommand))
		Expect(sh.Execute("   ")).To(Equal(CodeBadCommand))
		Expect(out.String()).To(Equal(strings.Repeat("Unknown Command\n", 3)))
	})

	It("should reject too many tokens", func() {
		Expect(sh.Execute("set x a b c d e f")).To(Equal(CodeBadCommand))
		Expect(out.String()).To(Equal("Bad command: Too many tokens\n"))
	})

	It("should ignore an empty line", func() {
		Expect(sh.Execute("")).To(Equal(CodeOK))
		Expect(out.String()).To(BeEmpty())
	})

	It("should set and print variables", func() {
		sh.Execute("set x hello big world")
		sh.Execute("print x")
		sh.Execute("print y")

		Expect(out.String()).
			To(Equal("hello big world\nVariable does not exist\n"))
	})

	It("should report a full variable store", func() {
		sh = MakeBuilder().
			WithMachine(machine).
			WithOutput(out).
			WithVariableStoreSize(1).
			Build("Shell")

		Expect(sh.Execute("set x 1")).To(Equal(CodeOK))
		Expect(sh.Execute("set y 2")).To(Equal(CodeBadCommand))
		Expect(out.String()).To(ContainSubstring("variable store is full"))
	})

	It("should echo words and variables", func() {
		sh.Execute("set x 42")
		sh.Execute("echo plain; echo $x; echo $missing")

		Expect(out.String()).To(Equal("plain\n42\n\n"))
	})

	Context("run", func() {
		It("should run a script relative to the working directory", func() {
			machine.EXPECT().Run(filepath.Join(dir, "prog")).Return(nil)

			Expect(sh.Execute("run prog")).To(Equal(CodeOK))
		})

		It("should report a missing script", func() {
			machine.EXPECT().Run(gomock.Any()).
				Return(fmt.Errorf("%w: prog", kernel.ErrScriptNotFound))

			Expect(sh.Execute("run prog")).To(Equal(CodeFileNotFound))
			Expect(out.String()).To(Equal("Bad command: File not found\n"))
		})

		It("should pass a quit from inside a script upward", func() {
			machine.EXPECT().Run(gomock.Any()).Return(scheduling.ErrHalted)

			Expect(sh.Execute("run prog; echo never")).To(Equal(CodeQuit))
			Expect(out.String()).To(BeEmpty())
		})

		It("should report other failures", func() {
			machine.EXPECT().Run(gomock.Any()).Return(errors.New("disk on fire"))

			Expect(sh.Execute("run prog")).To(Equal(CodeBadCommand))
			Expect(out.String()).To(Equal("Error: disk on fire\n"))
		})
	})

	Context("exec", func() {
		BeforeEach(func() {
			for _, name := range []string{"a", "b", "c"} {
				Expect(os.WriteFile(filepath.Join(dir, name), []byte("echo x\n"), 0o644)).
					To(Succeed())
			}
		})

		It("should run the scripts with the policy", func() {
			machine.EXPECT().Exec(
				[]string{filepath.Join(dir, "a"), filepath.Join(dir, "b")},
				scheduling.RR,
			).Return(nil)

			Expect(sh.Execute("exec a b RR")).To(Equal(CodeOK))
		})

		It("should accept the aging policy", func() {
			machine.EXPECT().Exec(gomock.Len(3), scheduling.Aging).Return(nil)

			Expect(sh.Execute("exec a b c AGING")).To(Equal(CodeOK))
		})

		It("should reject an unknown policy", func() {
			Expect(sh.Execute("exec a b LOTTERY")).To(Equal(CodeBadCommand))
			Expect(out.String()).To(Equal("Error: Invalid scheduling policy\n"))
		})

		It("should not run anything if a script is missing", func() {
			Expect(sh.Execute("exec a nope FCFS")).To(Equal(CodeFileNotFound))
			Expect(out.String()).To(Equal(
				"Error: Could not open file nope\nBad command: File not found\n"))
		})

		It("should take at most three scripts", func() {
			Expect(sh.Execute("exec a b c a FCFS")).To(Equal(CodeBadCommand))
			Expect(out.String()).To(Equal("Unknown Command\n"))
		})
	})

	Context("file commands", func() {
		It("should create directories and files and list them", func() {
			sh.Execute("my_mkdir zeta; my_mkdir Alpha; my_touch apple; my_touch 9lives")
			out.Reset()

			Expect(sh.Execute("my_ls")).To(Equal(CodeOK))
			Expect(out.String()).To(Equal("9lives\nAlpha\napple\nzeta\n"))
		})

		It("should create a directory named by a variable", func() {
			sh.Execute("set d photos; my_mkdir $d")

			info, err := os.Stat(filepath.Join(dir, "photos"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("should refuse bad directory names", func() {
			sh.Execute("my_mkdir $missing; my_mkdir a/b")

			Expect(out.String()).To(Equal("Bad command: my_mkdir\nBad command: my_mkdir\n"))
		})

		It("should change directory", func() {
			sh.Execute("my_mkdir sub; my_cd sub; my_touch inner")

			Expect(sh.WorkingDir()).To(Equal(filepath.Join(dir, "sub")))
			Expect(filepath.Join(dir, "sub", "inner")).To(BeAnExistingFile())
		})

		It("should refuse to enter what is not a directory", func() {
			sh.Execute("my_touch file; my_cd file; my_cd nothing; my_cd a.b")

			Expect(out.String()).To(Equal(strings.Repeat("Bad command: my_cd\n", 3)))
			Expect(sh.WorkingDir()).To(Equal(dir))
		})
	})

	Context("serving input", func() {
		It("should run lines until quit", func() {
			in := strings.NewReader("echo one\nquit\necho two\n")

			Expect(sh.Serve(NewBatchReader(in))).To(Succeed())
			Expect(out.String()).To(Equal("one\nBye!\n"))
		})

		It("should stop at the end of the input", func() {
			in := strings.NewReader("echo one\necho two")

			Expect(sh.Serve(NewBatchReader(in))).To(Succeed())
			Expect(out.String()).To(Equal("one\ntwo\n"))
		})

		It("should print the banner", func() {
			sh.PrintBanner()

			Expect(out.String()).To(HavePrefix(Version + "\nCOMMAND"))
		})
	})
})
