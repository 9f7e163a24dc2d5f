package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sweepCmd runs one stale-appointment sweep, for use from cron.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark past approved appointments missed or expired, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			out := runSweep(cmd.Context(), a.lifecycle)
			logSweep(a, out)
			a.dispatcher.Wait()
			if out.err != nil {
				return out.err
			}
			for id, err := range out.res.Failures {
				a.log.Warn().Str("appointment_id", id).Err(err).Msg("sweep failure")
			}
			if len(out.res.Failures) > 0 {
				return fmt.Errorf("%d appointments could not be swept", len(out.res.Failures))
			}
			return nil
		},
	}
}
