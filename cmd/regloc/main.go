package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetratelabs/regloc/internal/version"
)

func main() {
	doMain(os.Stdin, os.Stdout, os.Stderr, os.Args[1:], os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdIn io.Reader, stdOut, stdErr io.Writer, args []string, exit func(code int)) {
	rootCmd := newRootCommand()
	rootCmd.SetIn(stdIn)
	rootCmd.SetOut(stdOut)
	rootCmd.SetErr(stdErr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
		return
	}
	exit(0)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "regloc <command> [arguments]",
		Short:         "regloc encodes x86 instructions.",
		Long:          "regloc encodes x86 (32 and 64-bit) instructions written in Intel-like syntax and prints their bytes in hex.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "regloc encode --arch 64 \"mov rcx, [0xFEDCBA9876543210]\"",
	}

	rootCmd.AddCommand(getEncodeCmd().GetCmd())
	rootCmd.AddCommand(getVersionCmd().GetCmd())
	return rootCmd
}

type versionCmd struct {
	BaseCmd
}

func getVersionCmd() *versionCmd {
	versionCmdIns := new(versionCmd)

	subCmd := &cobra.Command{
		Use:     "version",
		Short:   "Print the version of regloc.",
		Example: "regloc version",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			versionCmdIns.printVersion(cmd.OutOrStdout())
		},
	}
	versionCmdIns.SetCmd(subCmd)

	return versionCmdIns
}

func (t *versionCmd) printVersion(w io.Writer) {
	fmt.Fprintln(w, version.GetReglocVersion())
}
