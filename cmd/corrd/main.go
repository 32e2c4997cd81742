package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"tradecore/internal/audit"
	"tradecore/internal/chaos"
	"tradecore/internal/codec"
	"tradecore/internal/dispatch"
	"tradecore/internal/message"
	"tradecore/internal/obs"
	"tradecore/internal/ops"
	"tradecore/internal/recorder"
	"tradecore/internal/schedule"
	"tradecore/pkg/conn"
	"tradecore/pkg/exception"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath    string
	captureDir    string
	capturePrefix string
	files         []string
	speed         float64
	useRecvTime   bool
	statsInterval time.Duration
	chaos         chaos.Config
}

func main() {
	var (
		opt   options
		files string
	)
	flag.StringVar(&opt.configPath, "config", "", "Path to JSON config")
	flag.StringVar(&opt.captureDir, "capture-dir", "", "Directory of capture segments to replay")
	flag.StringVar(&opt.capturePrefix, "capture-prefix", "", "Capture file prefix (default: capture)")
	flag.StringVar(&files, "files", "", "Comma separated capture files replayed after capture-dir")
	flag.Float64Var(&opt.speed, "speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	flag.BoolVar(&opt.useRecvTime, "use-recv-time", false, "Use receive timestamp for pacing")
	flag.DurationVar(&opt.statsInterval, "stats-interval", 15*time.Second, "Metrics log interval (0=disable)")
	flag.Int64Var(&opt.chaos.Seed, "chaos-seed", 0, "Chaos RNG seed (0=now)")
	flag.Float64Var(&opt.chaos.DropRate, "chaos-drop-rate", 0, "Drop probability [0-1]")
	flag.Float64Var(&opt.chaos.DuplicateRate, "chaos-dup-rate", 0, "Duplicate probability [0-1]")
	flag.IntVar(&opt.chaos.ReorderWindow, "chaos-reorder-window", 1, "Reorder window (>=1)")
	flag.DurationVar(&opt.chaos.MaxDelay, "chaos-max-delay", 0, "Max receive delay")
	flag.Parse()
	for _, f := range strings.Split(files, ",") {
		if f = strings.TrimSpace(f); f != "" {
			opt.files = append(opt.files, f)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, opt); err != nil {
		logs.Errorf("corrd failed, err: %+v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Parse([]byte("{}"))
	}
	return ops.Load(path)
}

func run(ctx context.Context, opt options) error {
	loaded, err := loadConfig(opt.configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Profiling.ApplicationName,
			ServerAddress:   loaded.Profiling.ServerAddress,
			Tags:            loaded.Profiling.Tags,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start pyroscope")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	playback, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:         opt.captureDir,
		FilePrefix:  opt.capturePrefix,
		Files:       opt.files,
		Speed:       opt.speed,
		UseRecvTime: opt.useRecvTime,
	})
	if err != nil {
		return err
	}

	var engine *chaos.Engine
	if !opt.chaos.IsZero() {
		if engine, err = chaos.NewEngine(opt.chaos); err != nil {
			return err
		}
		logs.Warnf("chaos enabled, drop %.3f, duplicate %.3f, reorder window %d, max delay %s",
			opt.chaos.DropRate, opt.chaos.DuplicateRate, opt.chaos.ReorderWindow, opt.chaos.MaxDelay)
	}

	var (
		running atomic.Bool
		task    *schedule.Task
	)
	if loaded.Schedule != nil {
		task = schedule.NewTask("corrd.replay", loaded.Schedule, running.Load)
		if !task.CanStart(time.Now()) {
			if loaded.EnforceSchedule {
				logs.Infof("%s is outside working time, not starting", task.Name)
				return nil
			}
			logs.Warnf("%s is outside working time", task.Name)
		}
	}

	var (
		sinks   dispatch.MultiSink
		metrics = obs.NewMetrics()
		bg      errgroup.Group
	)
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()

	if loaded.Audit.Enabled {
		client, err := conn.New(loaded.Audit.Postgres)
		if err != nil {
			return errors.Wrap(err, "connect audit database")
		}
		defer client.Close()
		store := audit.NewStore(client.DB())
		if loaded.Audit.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		auditSink := audit.NewSink(store, loaded.Audit.Sink)
		sinks = append(sinks, auditSink)
		bg.Go(func() error {
			auditSink.Run(bgCtx)
			return nil
		})
		defer func() {
			logs.Infof("audit dropped %d, failed %d", auditSink.Dropped(), auditSink.Failed())
		}()
	}

	if loaded.Capture.Enabled {
		w, err := recorder.NewWriter(loaded.Capture.Writer)
		if err != nil {
			return err
		}
		if err := w.Start(bgCtx); err != nil {
			return err
		}
		captureSink := recorder.NewSink(w, loaded.Capture.OnlyUncorrelated)
		sinks = append(sinks, captureSink)
		defer func() {
			if err := w.Close(); err != nil {
				logs.Errorf("close capture, err: %+v", err)
			}
			logs.Infof("captured %d in %d segments, dropped %d, skipped %d", w.Written(), len(w.Segments()), captureSink.Dropped(), w.Skipped())
		}()
	}

	var sink dispatch.Sink
	if len(sinks) != 0 {
		sink = sinks
	}
	d := dispatch.New(loaded.Dispatch, sink, metrics)
	f := &feeder{
		d:      d,
		boards: loaded.Boards,
		ids:    obs.NewIDGenerator(0),
		task:   task,
		direct: loaded.Dispatch.Workers <= 1,
	}

	workers := make(chan error, 1)
	go func() { workers <- d.Run(bgCtx) }()
	if opt.statsInterval > 0 {
		go logStats(bgCtx, metrics, opt.statsInterval)
	}

	logs.Infof("corrd started, workers %d, boards %d, audit %v, capture %v",
		max(loaded.Dispatch.Workers, 1), loaded.Boards.Len(), loaded.Audit.Enabled, loaded.Capture.Enabled)
	running.Store(true)
	start := time.Now()
	err = playback.Run(ctx, func(m message.Message, env codec.Envelope) error {
		for _, ev := range engine.Process(chaos.Event{Message: m, Env: env}) {
			if err := f.feed(ctx, ev.Message, ev.Env); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		for _, ev := range engine.Flush() {
			if err = f.feed(ctx, ev.Message, ev.Env); err != nil {
				break
			}
		}
	}
	running.Store(false)

	d.Close()
	if werr := <-workers; werr != nil {
		logs.Errorf("dispatcher, err: %+v", werr)
	}
	stopBackground()
	_ = bg.Wait()

	logSnapshot(metrics.Snapshot())
	if engine != nil {
		st := engine.Stats()
		logs.Infof("chaos passed %d, dropped %d, duplicated %d, reordered %d, delayed %d",
			st.Passed, st.Dropped, st.Duplicated, st.Reordered, st.Delayed)
	}
	logs.Infof("corrd stopped after %s, requests %d (%d rejected), inbound %d, live %d",
		time.Since(start).Round(time.Millisecond), f.requests, metrics.Snapshot().Get(obs.CounterRejected), f.inbound, d.Resolver().Live())

	switch {
	case err == nil:
		return nil
	case err == errOutOfSchedule:
		return nil
	case exception.IsCanceled(err):
		logs.Infof("replay interrupted")
		return nil
	default:
		return err
	}
}

func logStats(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	var mem obs.RuntimeMemory
	mem.Sample()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logSnapshot(metrics.Snapshot())
			mem.Sample()
			logs.Infof("runtime %s", mem.String())
		}
	}
}

func logSnapshot(snap obs.Snapshot) {
	var sb strings.Builder
	for c := obs.CounterMessages; c <= obs.CounterQueueDrops; c++ {
		if sb.Len() != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatUint(snap.Get(c), 10))
	}
	logs.Infof("stats %s, handle avg %s max %s, feed avg %s",
		sb.String(), snap.HandleLatency.Avg, snap.HandleLatency.Max, snap.FeedLatency.Avg)
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...any)  {}
func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Errorf(string, ...any) {}
