package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dgirardi/thawcast-go/internal/config"
	"github.com/dgirardi/thawcast-go/internal/forecast"
	"github.com/dgirardi/thawcast-go/internal/ingest"
	"github.com/dgirardi/thawcast-go/internal/logging"
	"github.com/dgirardi/thawcast-go/internal/pipeline"
	"github.com/dgirardi/thawcast-go/internal/schedule"
	"github.com/dgirardi/thawcast-go/internal/services"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "thawcast",
		Short: "Demand forecasting and cold-chain retrieval scheduling",
		Long: `thawcast fits short-horizon demand models on daily sales exports and
reconciles the forecasts into thaw-cycle retrieval schedules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBatchCmd(), newReportCmd(), newInteractiveCmd())
	return root
}

// buildService wires a ForecastService from configuration, without cache or
// persistence. Pipeline logs go to stderr so stdout stays machine-readable.
func buildService(strategyName string) (*services.ForecastService, *config.Config, *logrus.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Environment)

	if strategyName == "" {
		strategyName = cfg.Forecast.Strategy
	}
	strategy, err := forecast.NewStrategy(strategyName, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	scheduler, err := schedule.NewScheduler(cfg.Retrieval.LossFraction, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	orchestrator := pipeline.NewOrchestrator(
		timeseries.NewSeriesPreparer(cfg.Forecast.MinHistoryPoints, logger),
		strategy,
		scheduler,
		timeseries.DefaultHolidayCalendar(cfg.Forecast.HolidayEffectWindowDays),
		logger,
	)

	svc := services.NewForecastService(orchestrator, ingest.NewLoader(logger), nil, nil,
		cfg.Forecast, strategy.Name(), logger)
	return svc, cfg, logger, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newBatchCmd() *cobra.Command {
	var file, strategyName string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Forecast every product in a sales export",
		Long: `Reads a semicolon-separated sales export and writes one forecast entry
per product as a JSON array on stdout. Products with too little history
are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := buildService(strategyName)
			if err != nil {
				return err
			}

			in, err := openInput(file)
			if err != nil {
				return err
			}
			defer in.Close()

			entries, _, err := svc.BatchFromCSV(cmd.Context(), in)
			if err != nil {
				return printJSON(cmd.OutOrStdout(), map[string]string{"error": err.Error()})
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Sales export path, - for stdin")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "Forecast strategy (seasonal or boosted)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var file, strategyName, sku, date string
	var notify bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Retrieval report for one product on one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, logger, err := buildService(strategyName)
			if err != nil {
				return err
			}

			var productID int64
			if _, err := fmt.Sscanf(sku, "%d", &productID); err != nil {
				return fmt.Errorf("invalid --sku %q: %w", sku, err)
			}
			queryDate, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
			}

			in, err := openInput(file)
			if err != nil {
				return err
			}
			defer in.Close()

			report, err := svc.Report(cmd.Context(), in, productID, queryDate)
			if err != nil {
				return printJSON(cmd.OutOrStdout(), map[string]string{"error": err.Error()})
			}

			if notify {
				ns := services.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
				if err := ns.SendRetrievalReminder(cmd.Context(), report); err != nil {
					logger.WithError(err).Warn("Retrieval reminder delivery failed")
				}
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Sales export path, - for stdin")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "Forecast strategy (seasonal or boosted)")
	cmd.Flags().StringVar(&sku, "sku", "", "Product id")
	cmd.Flags().StringVar(&date, "date", "", "Query date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the report as a Telegram reminder")
	_ = cmd.MarkFlagRequired("sku")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newInteractiveCmd() *cobra.Command {
	var file, strategyName, sku, date string

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Human-readable forecast and retrieval summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := buildService(strategyName)
			if err != nil {
				return err
			}

			var productID int64
			if _, err := fmt.Sscanf(sku, "%d", &productID); err != nil {
				return fmt.Errorf("invalid --sku %q: %w", sku, err)
			}
			queryDate, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
			}

			in, err := openInput(file)
			if err != nil {
				return err
			}
			data, err := io.ReadAll(in)
			in.Close()
			if err != nil {
				return err
			}

			entry, err := svc.ForecastOne(cmd.Context(), bytes.NewReader(data), productID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Product %d\n", entry.SKU)
			fmt.Fprintf(out, "RMSE: %.2f\n", entry.RMSE)
			fmt.Fprintf(out, "MAPE: %.2f%%\n", entry.MAPE)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Date        Forecast (kg)")
			for _, p := range entry.Previsoes {
				fmt.Fprintf(out, "%s  %13.2f\n", p.DS, p.Yhat)
			}

			report, err := svc.Report(cmd.Context(), bytes.NewReader(data), productID, queryDate)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, services.FormatRetrievalMessage(report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Sales export path, - for stdin")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "Forecast strategy (seasonal or boosted)")
	cmd.Flags().StringVar(&sku, "sku", "", "Product id")
	cmd.Flags().StringVar(&date, "date", "", "Query date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("sku")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
