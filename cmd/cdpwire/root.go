package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	flagHost string
	flagPort int
	flagTab  string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:           "cdpwire",
	Short:         "Minimal Chrome DevTools Protocol client",
	Long:          "cdpwire dials a running Chrome/Chromium instance's debug port and issues CDP commands, demonstrating the session package end to end.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "127.0.0.1", "Browser debug host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 9222, "Browser debug port")
	rootCmd.PersistentFlags().StringVar(&flagTab, "tab", "", "Tab id to target instead of the first page tab")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printOK() {
	if noColor {
		os.Stdout.WriteString("OK\n")
		return
	}
	color.New(color.FgGreen).Fprintln(os.Stdout, "OK")
}

func printError(err error) {
	if noColor {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return
	}
	color.New(color.FgRed).Fprint(os.Stderr, "Error: ")
	color.New(color.FgRed).Fprintln(os.Stderr, err.Error())
}
