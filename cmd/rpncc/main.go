package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iley/rpncc/internal/codegen"
	"github.com/iley/rpncc/internal/compiler"
	"github.com/iley/rpncc/internal/sim"
)

var (
	outputFile   string
	traceEnabled bool
	objectFormat string
)

// CompilationConfig holds platform-specific assembler settings
type CompilationConfig struct {
	Assembler      string
	AssemblerFlags []string
	ObjectSuffix   string
}

var rootCmd = &cobra.Command{
	Use:   "rpncc",
	Short: "Postfix expression compiler",
	Long: "Compiles postfix arithmetic programs such as \"12+34+*\" or \"x5=;x3+\" into an x86-64 " +
		"NASM function named _evaluate that returns the value of the last statement.",
	SilenceUsage: true,
}

var compileCmd = &cobra.Command{
	Use:   "compile <program>",
	Short: "Print the assembly for a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := compileProgram(args[0])
		if err != nil {
			return err
		}

		if outputFile == "" || outputFile == "-" {
			return writeLines(cmd.OutOrStdout(), lines)
		}
		return writeFile(outputFile, lines)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <program>",
	Short: "Assemble a program into an object file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := getCompilationConfig(objectFormat)
		if err != nil {
			return fmt.Errorf("failed to get compilation config: %w", err)
		}

		keepIntermediateFiles, _ := cmd.Flags().GetBool("keep")

		lines, err := compileProgram(args[0])
		if err != nil {
			return err
		}

		objFile := outputFile
		if objFile == "" {
			objFile = "evaluate" + config.ObjectSuffix
		}
		return buildObject(config, lines, objFile, keepIntermediateFiles)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <program>",
	Short: "Compile a program and execute it in the simulator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := compileProgram(args[0])
		if err != nil {
			return err
		}

		state, err := sim.Run(lines, codegen.EntryPoint)
		if err != nil {
			return fmt.Errorf("simulation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d (0x%08x)\n", state.Result(), state.EAX())
		for _, name := range state.Symbols {
			fmt.Fprintf(out, "%s = %d\n", name, int32(state.Memory[name]))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "dump generator state after every input character to stderr")
	compileCmd.Flags().StringVarP(&outputFile, "o", "o", "", "output file name (- for stdout)")
	buildCmd.Flags().StringVarP(&outputFile, "o", "o", "", "object file name")
	buildCmd.Flags().BoolP("keep", "k", false, "Keep intermediate files (.asm)")
	buildCmd.Flags().StringVar(&objectFormat, "format", "", "nasm object format (default depends on platform)")
	rootCmd.AddCommand(compileCmd, buildCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func compileProgram(program string) ([]string, error) {
	var opts compiler.Options
	if traceEnabled {
		opts.Trace = os.Stderr
	}
	lines, err := compiler.Compile(strings.NewReader(program), opts)
	if err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}
	return lines, nil
}

// getCompilationConfig returns assembler settings for the current platform.
// A non-empty format overrides the platform object format.
func getCompilationConfig(format string) (*CompilationConfig, error) {
	var config *CompilationConfig
	switch runtime.GOOS {
	case "linux":
		config = &CompilationConfig{Assembler: "nasm", AssemblerFlags: []string{"-f", "elf64"}, ObjectSuffix: ".o"}
	case "darwin":
		config = &CompilationConfig{Assembler: "nasm", AssemblerFlags: []string{"-f", "macho64"}, ObjectSuffix: ".o"}
	case "windows":
		config = &CompilationConfig{Assembler: "nasm", AssemblerFlags: []string{"-f", "win64"}, ObjectSuffix: ".obj"}
	default:
		if format == "" {
			return nil, fmt.Errorf("unsupported platform: %s/%s", runtime.GOOS, runtime.GOARCH)
		}
		config = &CompilationConfig{Assembler: "nasm", ObjectSuffix: ".o"}
	}
	if format != "" {
		config.AssemblerFlags = []string{"-f", format}
	}
	return config, nil
}

// buildObject writes the assembly next to objFile and runs the assembler on it
func buildObject(config *CompilationConfig, lines []string, objFile string, keepIntermediate bool) error {
	baseName := strings.TrimSuffix(filepath.Base(objFile), filepath.Ext(objFile))
	asmFile := filepath.Join(filepath.Dir(objFile), baseName+".asm")

	if err := writeFile(asmFile, lines); err != nil {
		return err
	}

	asArgs := append(append([]string{}, config.AssemblerFlags...), "-o", objFile, asmFile)
	asCmd := exec.Command(config.Assembler, asArgs...)
	if output, err := asCmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "assembly failed: %v\nOutput: %s\n", err, string(output))
		return err
	}

	if !keepIntermediate {
		if err := os.Remove(asmFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove %s: %v\n", asmFile, err)
		}
	}
	return nil
}

func writeFile(name string, lines []string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	if err := writeLines(f, lines); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
