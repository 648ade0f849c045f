// Command njs is the script-running CLI shell collaborator spec.md §6
// names only to enumerate the flags the engine must support: a single
// root command (no subcommands, unlike the teacher's per-generated-
// command CLI) that compiles one source file, starts it, and drains its
// event loop to completion.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/njs-go/njs/internal/config"
	"github.com/njs-go/njs/internal/diag"
	"github.com/njs-go/njs/pkg/njs"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		command     string
		disassemble bool
		noDenormals bool
		searchPath  []string
		quiet       bool
		sandbox     bool
		sourceType  string
		unsafe      bool
		ast         bool
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:           "njs [script]",
		Short:         "run a JavaScript source file",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			if showVersion {
				fmt.Fprintln(stdout, version)
				return nil
			}

			opts := config.Default()
			opts.Disassemble = disassemble
			opts.SearchPath = searchPath
			opts.Quiet = quiet
			opts.Sandbox = sandbox
			opts.Unsafe = unsafe
			opts.AST = ast
			opts.Module = sourceType == "module"
			_ = noDenormals // -f only affects float denormal flushing in the numeric core; no Go-level knob to set

			vm := njs.Create(opts)

			src, file, err := sourceOf(command, posArgs)
			if err != nil {
				return err
			}

			if err := vm.Compile(src, file); err != nil {
				return err
			}

			if ast {
				out, err := diag.DumpAST(vm.Program())
				if err != nil {
					return err
				}
				_, err = stdout.Write(out)
				return err
			}
			if disassemble {
				fmt.Fprint(stdout, diag.Disassemble(vm.Chunk()))
				return nil
			}

			if _, err := vm.Start(); err != nil {
				return describeErr(err)
			}
			for {
				status, err := vm.Run()
				if err != nil {
					return describeErr(err)
				}
				if status == njs.OK {
					break
				}
				// A real host loop would block on its own I/O readiness
				// here; the CLI has nothing else to wait on but timers,
				// so it just yields briefly and asks again.
				time.Sleep(time.Millisecond)
			}
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&command, "command", "c", "", "execute the given source string instead of a file")
	flags.BoolVarP(&disassemble, "disassemble", "d", false, "print bytecode instead of running it")
	flags.BoolVarP(&noDenormals, "no-denormals", "f", false, "accepted for compatibility; has no effect")
	flags.StringArrayVarP(&searchPath, "path", "p", nil, "module search path entry (repeatable)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	flags.BoolVarP(&sandbox, "sandbox", "s", false, "disable host-unsafe builtins")
	flags.StringVarP(&sourceType, "type", "t", "script", "source type: script or module")
	flags.BoolVarP(&unsafe, "unsafe", "u", false, "allow host-unsafe builtins even under sandbox defaults")
	flags.BoolVarP(&ast, "ast", "a", false, "print the parsed AST instead of running it")
	flags.BoolVarP(&showVersion, "version", "v", false, "print version and exit")

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "njs: %v\n", err)
		return 1
	}
	return 0
}

// sourceOf resolves -c's literal source against a positional file
// argument, matching spec.md §6's CLI surface where exactly one of the
// two supplies the program text.
func sourceOf(command string, posArgs []string) (src, file string, err error) {
	if command != "" {
		return command, "<command-line>", nil
	}
	if len(posArgs) == 0 {
		return "", "", fmt.Errorf("no script given (use -c or pass a file)")
	}
	path := posArgs[0]
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(b), path, nil
}

// describeErr renders a thrown or compile-time error as the CLI's
// exit-code-1 message; njs.RuntimeError separates a JS-level thrown
// value's name/message from a Go-level compile error's own Error() text.
func describeErr(err error) error {
	if name, message, ok := njs.RuntimeError(err); ok {
		return fmt.Errorf("%s: %s", name, message)
	}
	return err
}
