package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duskline/cdpwire/internal/session"
)

var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Evaluate a JavaScript expression in the target tab",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	opts := session.Options{Host: flagHost, Port: flagPort}
	if flagTab != "" {
		opts.Tab = session.ByID(flagTab)
	}

	sess, err := session.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sess.Close()

	result, err := sess.Eval(ctx, args[0])
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	fmt.Println(string(result))
	printOK()
	return nil
}
