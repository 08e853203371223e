package commands

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/threadkeep/threadkeep/internal/actions"
	"github.com/threadkeep/threadkeep/internal/api"
	"github.com/threadkeep/threadkeep/internal/config"
	"github.com/threadkeep/threadkeep/internal/delivery"
	"github.com/threadkeep/threadkeep/internal/delivery/handlers"
	"github.com/threadkeep/threadkeep/internal/export"
	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/insights"
	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/internal/middleware"
	"github.com/threadkeep/threadkeep/internal/notify"
	"github.com/threadkeep/threadkeep/internal/registry"
	"github.com/threadkeep/threadkeep/internal/scheduler"
	"github.com/threadkeep/threadkeep/internal/store"
	"github.com/threadkeep/threadkeep/internal/sweeper"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the follow-up service",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	st, err := store.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	}()

	if err := store.RunMigrations(st.DB()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	followups, reports, usage, err := st.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	reg := registry.New()
	reg.Load(followups)
	reportLog := registry.NewReportLog()
	reportLog.Load(reports, usage)
	log.Printf("Loaded %d followups, %d reports", reg.Len(), len(reports))

	resetAfterRestart(reg, time.Now())

	queue, err := delivery.NewQueue(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			log.Printf("failed to close delivery queue: %v", err)
		}
	}()

	slack := notify.NewSlackClient(cfg.SlackToken, cfg.SlackAPIBase)
	mailer := export.NewMailer(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress)

	dispatcher := delivery.NewDispatcher(queue)
	dispatcher.RegisterHandler(delivery.KindChat, handlers.ChatHandler(slack))
	dispatcher.RegisterHandler(delivery.KindEmail, handlers.EmailHandler(mailer))
	go dispatcher.Start(ctx)

	writeback := store.NewWriteback(st, reg, cfg.PersistInterval)
	go writeback.Run(ctx)

	svc := actions.NewService(reg, reportLog, slack, slack, st, writeback.Trigger)
	sched := scheduler.New(reg, slack, cfg.Schedule, cfg.DailyPingLimit, cfg.AdminUserID)
	sweep := sweeper.New(reg, reportLog, queue, slack, cfg.DeliveryStagger, writeback.Trigger)

	go runLoops(ctx, cfg, reg, reportLog, sched, sweep, writeback, queue)

	apiHandler := api.NewAPI(svc, reg, reportLog, queue, slack, cfg.AdminUserID)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.MetricsMiddleware(mux),
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	dispatcher.Stop()
	writeback.Stop()
	cancel()
	return nil
}

// resetAfterRestart clears the per-day ping counters and restarts each active
// followup's ping interval from now. Without this a long outage would cause a
// ping burst the moment working hours resume.
func resetAfterRestart(reg *registry.Registry, now time.Time) {
	for _, f := range reg.Snapshot() {
		if !f.Active() {
			continue
		}
		_ = reg.Update(f.ID, func(cur *followup.Followup) error {
			cur.LastSent = now
			cur.DailyPingCount = 0
			return nil
		})
	}
}

func runLoops(ctx context.Context, cfg *config.Config, reg *registry.Registry, reportLog *registry.ReportLog, sched *scheduler.Scheduler, sweep *sweeper.Sweeper, writeback *store.Writeback, queue *delivery.Queue) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	gauges := time.NewTicker(30 * time.Second)
	defer gauges.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gauges.C:
			metrics.UpdateStateGauges(reg.Snapshot())
		case now := <-ticker.C:
			sched.Tick(ctx, now)
			writeback.Trigger()

			if now.Hour() == 0 && now.Minute() == 0 {
				sweep.Run(ctx, now)
			}
			if now.Hour() == 9 && now.Minute() == 0 && now.Day()%2 == 1 {
				reportPass(cfg, reg, reportLog, queue, now)
				writeback.Trigger()
			}
		}
	}
}

// reportPass resets the per-day ping counters and sends the admin the
// periodic dashboard summary plus the full CSV report.
func reportPass(cfg *config.Config, reg *registry.Registry, reportLog *registry.ReportLog, queue *delivery.Queue, now time.Time) {
	for _, f := range reg.Snapshot() {
		if f.DailyPingCount == 0 {
			continue
		}
		_ = reg.Update(f.ID, func(cur *followup.Followup) error {
			cur.DailyPingCount = 0
			return nil
		})
	}

	if cfg.AdminUserID == "" {
		return
	}

	followups := reg.Snapshot()
	summary := insights.Summarize(followups, now)
	escalations := insights.EscalationCandidates(followups, now)
	breakdown := insights.ReportBreakdown(reportLog.Snapshot())
	recs := insights.Recommendations(summary, escalations, breakdown)

	dmJob := delivery.NewJob(delivery.KindChat, map[string]any{
		"user": cfg.AdminUserID,
		"text": dashboardText(summary, escalations, recs),
	}, now)
	if err := queue.Enqueue(dmJob); err != nil {
		log.Printf("Could not queue admin dashboard: %v", err)
	}

	if cfg.AdminEmail == "" {
		return
	}
	csvContent := export.AdminCSV(followups, summary, escalations, now)
	if csvContent == "" {
		return
	}
	emailJob := delivery.NewJob(delivery.KindEmail, map[string]any{
		"to":       cfg.AdminEmail,
		"subject":  "Team follow-up report " + now.Format("2006-01-02"),
		"body":     "The periodic team follow-up report is attached.",
		"filename": "Team_Report_" + now.Format("2006-01-02") + ".csv",
		"csv":      csvContent,
	}, now.Add(cfg.DeliveryStagger))
	if err := queue.Enqueue(emailJob); err != nil {
		log.Printf("Could not queue admin report email: %v", err)
	}
}

func dashboardText(summary insights.Summary, escalations []*followup.Followup, recs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Follow-up dashboard*\n")
	fmt.Fprintf(&b, "Total: %d | Active: %d | Resolved: %d | Blocked: %d\n",
		summary.Total, summary.Active, summary.Resolved, summary.Blocked)
	fmt.Fprintf(&b, "Completion rate: %d%% | Avg resolution: %.1f days | Avg pings: %.1f\n",
		summary.CompletionRate, summary.AvgResolutionDays, summary.AvgPingsPerTask)

	if len(escalations) > 0 {
		fmt.Fprintf(&b, "\n*Needs attention (%d)*\n", len(escalations))
		for i, f := range escalations {
			if i == 5 {
				fmt.Fprintf(&b, "...and %d more\n", len(escalations)-5)
				break
			}
			fmt.Fprintf(&b, "- %s (assignee <@%s>, %d pings, %s)\n", f.Note, f.Assignee, f.PingCount, f.State)
		}
	}

	b.WriteString("\n*Recommendations*\n")
	for _, rec := range recs {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	return b.String()
}
