package serve

import (
	"github.com/spf13/cobra"

	"cybnity/internal/app"
	"cybnity/internal/config"
)

func NewServeCommand() *cobra.Command {
	var notifications []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the recipients manager",
		Long: `Listens to processing unit presence announcements, merges their routes and
notifies the units when the route table changed. On startup every unit is asked
to announce itself again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			override := func(cfg *config.Config) {
				if len(notifications) > 0 {
					cfg.NotificationChannels = notifications
				}
			}

			return app.Execute(cmd.Context(), override, func(rt *app.Runtime) (app.Role, error) {
				return app.NewRecipientsManager(rt)
			})
		},
	}

	cmd.Flags().StringSliceVar(&notifications, "notify", nil, "channels notified of routing changes (overrides NOTIFICATION_CHANNELS)")

	return cmd
}
