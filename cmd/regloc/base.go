package main

import (
	"github.com/spf13/cobra"
)

// BaseCmd holds the cobra command of a sub command.
type BaseCmd struct {
	Cmd *cobra.Command
}

func (t *BaseCmd) SetCmd(cmd *cobra.Command) {
	t.Cmd = cmd
}

func (t *BaseCmd) GetCmd() *cobra.Command {
	return t.Cmd
}
