package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tetratelabs/regloc"
	"github.com/tetratelabs/regloc/internal/asmtext"
)

type encodeCmd struct {
	BaseCmd
	cfgFile string
}

func getEncodeCmd() *encodeCmd {
	encodeCmdIns := new(encodeCmd)

	subCmd := &cobra.Command{
		Use:   "encode [flags] [instruction]...",
		Short: "Encode instructions and print the bytes of each one in hex.",
		Long: "Encode instructions and print the bytes of each one in hex, one line per instruction.\n" +
			"Instructions are read from standard input when none is given as argument.",
		Example: "regloc encode --arch 32 \"mov16 cx, 12345\" \"jmp 0x800000bb\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadEncodeConf(cmd, encodeCmdIns.cfgFile)
			if err != nil {
				return err
			}
			return encodeCmdIns.encode(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), conf, args)
		},
	}

	subCmd.Flags().StringVarP(&encodeCmdIns.cfgFile, "config", "c", "",
		"config file (YAML, JSON or TOML) with the keys arch, base_address, reuse_scratch and trace")
	subCmd.Flags().Int("arch", 64, "target architecture: 32 or 64")
	subCmd.Flags().String("base-address", "0", "address of the first instruction, decimal or 0x prefixed hex")
	subCmd.Flags().Bool("reuse-scratch", false, "share 64-bit address loads of the scratch register across instructions")
	subCmd.Flags().Bool("trace", false, "log every encoded instruction to stderr")
	encodeCmdIns.SetCmd(subCmd)

	return encodeCmdIns
}

func (t *encodeCmd) encode(stdIn io.Reader, stdOut, stdErr io.Writer, conf *encodeConf, args []string) error {
	var stmts []asmtext.Statement
	var err error
	if len(args) == 0 {
		stmts, err = asmtext.Parse(stdIn, "<stdin>")
	} else {
		// One instruction per argument, so that positions in errors are the index of the argument.
		stmts, err = asmtext.Parse(strings.NewReader(strings.Join(args, "\n")), "<args>")
	}
	if err != nil {
		return err
	}

	config, err := conf.encoderConfig()
	if err != nil {
		return err
	}
	if conf.Trace {
		config = config.WithLogger(slog.New(slog.NewTextHandler(stdErr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	e, err := regloc.NewEncoder(config)
	if err != nil {
		return err
	}

	encodeAll := func() error {
		for _, stmt := range stmts {
			start := e.Len()
			if err := e.Encode(stmt.Instruction, stmt.Operands...); err != nil {
				return errors.Wrapf(err, "%s", stmt.Pos)
			}
			fmt.Fprintln(stdOut, hex.EncodeToString(e.Bytes()[start:]))
		}
		return nil
	}
	if conf.ReuseScratch {
		return e.WithReusedScratchRegister(encodeAll)
	}
	return encodeAll()
}
