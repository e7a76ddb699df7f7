// Команда gigsync досылает на сервер подписанные транзакции
// из журнала и следит за подтверждением отдельных подписей.
//
//	gigsync [flags] replay
//	gigsync [flags] list
//	gigsync [flags] requeue <entry-id>
//	gigsync [flags] watch <signature>
//	gigsync [flags] track <kind> <gig-id> <signature> [proof-url...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/client/api"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/pendingsync"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/syncflow"
	"github.com/ignatzorin/gig-escrow-backend/internal/client/txmonitor"
	"github.com/ignatzorin/gig-escrow-backend/internal/config"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

func main() {
	// -config нужен до разбора остальных флагов: они переопределяют файл.
	configPath := configPathFromArgs(os.Args[1:], "gigsync.yaml")
	flag.String("config", configPath, "путь к yaml конфигурации")
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "адрес API, например http://localhost:8080/api")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "access токен пользователя")
	flag.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "файл журнала синхронизации")
	flag.StringVar(&cfg.Network, "network", cfg.Network, "сеть Solana: mainnet-beta требует finalized")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "попыток до остановки записи")
	flag.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "интервал опроса статуса")
	flag.IntVar(&cfg.MaxAttempts, "attempts", cfg.MaxAttempts, "сколько раз опрашивать статус")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "уровень логов")
	flag.Parse()

	logger.Init(cfg.LogLevel)
	logger.SetTextFormatter()

	if err := cfg.validate(); err != nil {
		logger.Log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args()); err != nil {
		logger.Log.Fatal(err)
	}
}

func run(ctx context.Context, cfg Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("gigsync: нужна команда: replay | list | requeue | watch | track")
	}

	queue, err := pendingsync.Open(cfg.JournalPath, cfg.MaxRetries)
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.APIURL, cfg.Token)
	monitor := txmonitor.New(statusSource(client),
		txmonitor.WithInterval(cfg.PollInterval),
		txmonitor.WithMaxAttempts(cfg.MaxAttempts),
		txmonitor.WithDepth(chain.DepthForNetwork(cfg.Network == config.NetworkMainnet)),
	)
	flow := syncflow.New(queue, monitor, client)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "replay":
		rep, err := flow.Replay(ctx)
		if err != nil {
			return err
		}
		logger.Log.WithFields(map[string]interface{}{
			"committed":  rep.Committed,
			"duplicates": rep.Duplicates,
			"failed":     rep.Failed,
			"stalled":    rep.Stalled,
		}).Info("gigsync: проход по журналу завершён")
		return nil

	case "list":
		return printEntries(queue)

	case "requeue":
		if len(rest) != 1 {
			return fmt.Errorf("gigsync: requeue <entry-id>")
		}
		id, err := uuid.Parse(rest[0])
		if err != nil {
			return fmt.Errorf("gigsync: некорректный id: %w", err)
		}
		return queue.Requeue(id)

	case "watch":
		if len(rest) != 1 {
			return fmt.Errorf("gigsync: watch <signature>")
		}
		res, ok := <-monitor.Watch(ctx, rest[0], nil)
		if !ok {
			return syncflow.ErrStopped
		}
		fmt.Printf("%s\t%s\tattempts=%d\n", res.Signature, res.State, res.Attempts)
		return res.Err

	case "track":
		e, err := entryFromArgs(rest)
		if err != nil {
			return err
		}
		res, err := flow.Track(ctx, e)
		fmt.Printf("%s\t%s\tattempts=%d\n", e.Signature, res.State, res.Attempts)
		return err
	}
	return fmt.Errorf("gigsync: неизвестная команда %q", args[0])
}

func entryFromArgs(args []string) (pendingsync.Entry, error) {
	if len(args) < 3 {
		return pendingsync.Entry{}, fmt.Errorf("gigsync: track <kind> <gig-id> <signature> [proof-url...]")
	}
	kind, err := pendingsync.ParseKind(args[0])
	if err != nil {
		return pendingsync.Entry{}, err
	}
	gigID, err := uuid.Parse(args[1])
	if err != nil {
		return pendingsync.Entry{}, fmt.Errorf("gigsync: некорректный gig-id: %w", err)
	}
	if kind == pendingsync.KindSubmitProof {
		return pendingsync.NewSubmitProof(gigID, args[2], entity.Proof{URLs: args[3:]}, time.Now())
	}
	return pendingsync.NewEntry(kind, gigID, args[2], time.Now())
}

// statusSource опрашивает статус через прокси сервера, чтобы клиенту не нужен был RPC узел.
func statusSource(c *api.Client) txmonitor.StatusFunc {
	return func(ctx context.Context, sig string) (chain.SignatureStatus, error) {
		s, err := c.SignatureStatus(ctx, sig)
		return chain.SignatureStatus(s), err
	}
}

func printEntries(q *pendingsync.Queue) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tGIG\tSIGNATURE\tRETRIES\tSTALLED\tCREATED")
	for _, e := range q.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
			e.ID, e.Kind, e.GigID, e.Signature, e.Retries, e.Stalled(q.MaxRetries()), e.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
