// Command qcprobe fetches a URL through a querycache N times concurrently and
// reports how many requests actually reached the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	altsrc "github.com/urfave/cli-altsrc/v3"
	altyaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/config"
	asynchook "github.com/unkn0wn-root/querycache/hooks/async"
	promhook "github.com/unkn0wn-root/querycache/hooks/prom"
	sloghook "github.com/unkn0wn-root/querycache/hooks/slog"
	"github.com/unkn0wn-root/querycache/httpfetch"
	qcslog "github.com/unkn0wn-root/querycache/log/slog"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand(configPath(os.Args)).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// configPath finds the config file before flags are parsed so the probe
// section can feed flag defaults.
func configPath(args []string) string {
	for i, a := range args {
		switch {
		case (a == "--config" || a == "-c") && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return os.Getenv("QCPROBE_CONFIG")
}

func newCommand(cfgPath string) *cli.Command {
	src := altsrc.StringSourcer(cfgPath)
	fromFile := func(key string) cli.ValueSourceChain {
		return cli.NewValueSourceChain(altyaml.YAML("probe."+key, src))
	}

	return &cli.Command{
		Name:  "qcprobe",
		Usage: "fetch a URL through a request cache and report dedup, retries and staleness",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", Sources: cli.EnvVars("QCPROBE_CONFIG")},
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "URL to fetch", Sources: fromFile("url")},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "gjson path to extract from the response", Sources: fromFile("path")},
			&cli.StringFlag{Name: "token", Usage: "bearer token", Sources: cli.EnvVars("QCPROBE_TOKEN")},
			&cli.IntFlag{Name: "n", Value: 10, Usage: "concurrent callers per round", Sources: fromFile("n")},
			&cli.IntFlag{Name: "rounds", Value: 2, Usage: "rounds of concurrent callers", Sources: fromFile("rounds")},
			&cli.BoolFlag{Name: "invalidate", Usage: "invalidate the entry between rounds"},
			&cli.BoolFlag{Name: "metrics", Usage: "print prometheus counters when done"},
			&cli.BoolFlag{Name: "debug", Usage: "debug logging"},
		},
		Action: probe,
	}
}

func probe(ctx context.Context, cmd *cli.Command) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	level, _ := cfg.Logging.SlogLevel()
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := newLogger(cfg.Logging.Format, level)
	slog.SetDefault(logger)

	stack, err := cfg.Build(ctx)
	if err != nil {
		return err
	}
	defer stack.Close(context.Background())

	reg := prometheus.NewRegistry()
	var hooks querycache.Hooks
	if cmd.Bool("metrics") {
		hooks = promhook.New(promhook.Options{Registerer: reg})
	} else {
		ah := asynchook.New(sloghook.New(logger, sloghook.Options{JoinEvery: 10}), 1, 1024)
		defer ah.Close()
		hooks = ah
	}

	opts := stack.Client
	opts.Logger = qcslog.New(logger)
	opts.Hooks = hooks
	opts.Session = querycache.SessionFunc(func(context.Context) error {
		logger.Warn("logout requested")
		return nil
	})
	opts.Navigator = querycache.NavigatorFunc(func(_ context.Context, path string) {
		logger.Warn("redirect requested", "path", path)
	})
	client := querycache.NewClient(opts)
	defer client.Close(context.Background())

	qc, err := querycache.New[string](client, config.CacheOptions[string](stack, "", codec.String{}))
	if err != nil {
		return err
	}
	defer qc.Close(context.Background())

	var fetchOpts []httpfetch.Option
	if tok := cmd.String("token"); tok != "" {
		fetchOpts = append(fetchOpts, httpfetch.WithToken(func(context.Context) (string, error) { return tok, nil }))
	}
	hc := httpfetch.New("", fetchOpts...)
	url, jsonPath := cmd.String("url"), cmd.String("path")
	if url == "" {
		return fmt.Errorf("no url: pass --url or set probe.url in the config file")
	}
	fetch := httpfetch.Path(hc, url, jsonPath)
	key := querycache.MustKey(url, jsonPath)

	n, rounds := int(cmd.Int("n")), int(cmd.Int("rounds"))
	if n < 1 {
		n = 1
	}
	start := time.Now()
	var last string
	for r := 0; r < rounds; r++ {
		if r > 0 && cmd.Bool("invalidate") {
			if err := qc.Invalidate(ctx, key); err != nil {
				return err
			}
		}
		res := runRound(ctx, qc, key, fetch, n)
		fmt.Printf("round %d: %s ok, %s failed, status %s\n",
			r+1, humanize.Comma(int64(res.ok)), humanize.Comma(int64(len(res.errs))), qc.Status(ctx, key))
		for _, e := range res.errs {
			class, _ := querycache.ClassOf(e)
			fmt.Printf("  %s: %v\n", class, e)
		}
		if res.value != "" {
			last = res.value
		}
	}

	st := qc.Stats()
	fmt.Printf("\n%s calls in %s: %s fetches, %s joins, %s hits (%.0f%% hit rate), %s failures\n",
		humanize.Comma(int64(n*rounds)), time.Since(start).Round(time.Millisecond),
		humanize.Comma(st.Fetches), humanize.Comma(st.Joins), humanize.Comma(st.Hits),
		st.HitRate()*100, humanize.Comma(st.Failures))
	fmt.Printf("last value: %s\n", humanize.Bytes(uint64(len(last))))
	if client.Monitor().Episodes() > 0 {
		fmt.Printf("session expired %d time(s)\n", client.Monitor().Episodes())
	}

	if cmd.Bool("metrics") {
		return printMetrics(reg)
	}
	return nil
}

type roundResult struct {
	ok    int
	errs  []error
	value string
}

func runRound(ctx context.Context, qc querycache.Cache[string], key querycache.Key, fetch querycache.Fetcher[string], n int) roundResult {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out roundResult
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, err := qc.Get(ctx, key, fetch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.errs = append(out.errs, err)
				return
			}
			out.ok++
			out.value = v
		}()
	}
	wg.Wait()
	return out
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func newLogger(format string, level slog.Level) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func printMetrics(reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })
	fmt.Println()
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			fmt.Printf("%s%s %s\n", mf.GetName(), labels, humanize.Commaf(v))
		}
	}
	return nil
}
