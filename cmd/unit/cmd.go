package unit

import (
	"github.com/spf13/cobra"

	"cybnity/internal/app"
	"cybnity/internal/config"
)

func NewUnitCommand() *cobra.Command {
	var (
		serviceName string
		routes      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "unit",
		Short: "Runs a processing unit announcing its routes",
		Example: `  cybnity unit --service-name access-control \
    --route TENANT_CREATED=ac-stream-1 --route TENANT_DELETED=`,
		RunE: func(cmd *cobra.Command, args []string) error {
			override := func(cfg *config.Config) {
				if serviceName != "" {
					cfg.ServiceName = serviceName
				}
				if len(routes) > 0 {
					cfg.UnitRoutes = routes
				}
			}

			return app.Execute(cmd.Context(), override, func(rt *app.Runtime) (app.Role, error) {
				return app.NewProcessingUnit(rt)
			})
		},
	}

	cmd.Flags().StringVar(&serviceName, "service-name", "", "name announced by the unit (overrides SERVICE_NAME)")
	cmd.Flags().StringToStringVar(&routes, "route", nil, "EVENT_TYPE=recipient route, empty recipient removes it (overrides UNIT_ROUTES)")

	return cmd
}
