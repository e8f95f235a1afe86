package root

import (
	"github.com/spf13/cobra"

	"cybnity/cmd/serve"
	"cybnity/cmd/unit"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cybnity",
		Short: "Dynamic recipient routing between processing units",
		Long: `Runs the recipients manager, which keeps the route table of the platform,
or a processing unit announcing the event types it handles.
Configuration is read from the environment (COUCHBASE_*, BUS_TRANSPORT, SERVICE_NAME, ...).`,
		SilenceUsage: true,
	}

	// add sub-commands
	rootCmd.AddCommand(serve.NewServeCommand())
	rootCmd.AddCommand(unit.NewUnitCommand())

	return rootCmd
}
