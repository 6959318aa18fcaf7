package commands

import (
	"fmt"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/repository"
	"github.com/Skarath13/cards/internal/service"
	"github.com/Skarath13/cards/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var resetDate string

var resetDailyCmd = &cobra.Command{
	Use:   "reset-daily",
	Short: "Archive a business day now (defaults to today)",
	Long: `reset-daily moves every transaction of the business date into the
archive, the same work the nightly job does. Grids held in memory by a running
server are not flushed first; stop the server or call the cron endpoint instead
when devices are still editing.`,
	Args: cobra.NoArgs,
	RunE: withDB(func(cmd *cobra.Command, _ []string, e *env) error {
		if resetDate != "" && !bizdate.Valid(resetDate) {
			return fmt.Errorf("--date must be YYYY-MM-DD, got %q", resetDate)
		}
		cal, err := bizdate.New(e.cfg.BusinessTimezone, nil)
		if err != nil {
			return err
		}

		deps := service.ResetDeps{
			Archive:  repository.NewArchiveRepository(e.db),
			Users:    repository.NewUserRepository(e.db),
			Calendar: cal,
		}
		if store, err := infra.NewReportStore(e.cfg); err == nil {
			deps.Reports = store
		} else {
			log.Warn().Err(err).Msg("report storage unavailable, archiving without a report")
		}
		if e.cfg.SMTPEnabled() {
			if rdb, err := infra.NewRedis(e.cfg.RedisURL); err == nil {
				defer rdb.Close()
				deps.Mail = worker.NewDispatcher(rdb)
				deps.ReportEmail = e.cfg.ReportEmail
			} else {
				log.Warn().Err(err).Msg("redis unavailable, report will not be emailed")
			}
		}

		resp, err := service.NewResetService(deps).ResetDaily(cmd.Context(), resetDate)
		if err != nil {
			return err
		}
		cmd.Println(resp.Message)
		if resp.ReportKey != "" {
			cmd.Printf("Report: %s\n", resp.ReportKey)
		}
		return nil
	}),
}

func init() {
	resetDailyCmd.Flags().StringVar(&resetDate, "date", "", "business date YYYY-MM-DD")
}
