package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duskline/cdpwire/internal/discovery"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the target browser's protocol version info",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	disc := discovery.New(flagHost, flagPort, nil, nil)

	info, err := disc.VersionInfo(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Browser:         %s\n", info.Browser)
	fmt.Printf("Protocol:        %s\n", info.ProtocolVer)
	fmt.Printf("User-Agent:      %s\n", info.UserAgent)
	if info.V8Version != "" {
		fmt.Printf("V8:              %s\n", info.V8Version)
	}
	if info.WebKitVersion != "" {
		fmt.Printf("WebKit:          %s\n", info.WebKitVersion)
	}
	printOK()
	return nil
}
