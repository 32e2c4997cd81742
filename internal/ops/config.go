package ops

import (
	"os"
	"strings"
	"time"

	"tradecore/internal/audit"
	"tradecore/internal/dispatch"
	"tradecore/internal/lookup"
	"tradecore/internal/message"
	"tradecore/internal/recorder"
	"tradecore/internal/schedule"
	"tradecore/pkg/conn"
	"tradecore/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const defaultApplicationName = "tradecore.corrd"

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Dispatch  DispatchConfig  `json:"dispatch"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Boards    []BoardConfig   `json:"boards"`
	Audit     AuditConfig     `json:"audit"`
	Capture   CaptureConfig   `json:"capture"`
	Profiling ProfilingConfig `json:"profiling"`
}

// DispatchConfig sizes the dispatcher.
type DispatchConfig struct {
	Workers       int `json:"workers"`
	QueueCapacity int `json:"queueCapacity"`
	Shards        int `json:"shards"`
}

// ScheduleConfig describes when the replay task may run.
// MIC selects an exchange calendar, otherwise weekdays in Timezone are used.
type ScheduleConfig struct {
	MIC      string `json:"mic"`
	Window   string `json:"window"`
	Timezone string `json:"timezone"`
	Enforce  bool   `json:"enforce"`
}

// BoardConfig describes a board served by board lookups.
type BoardConfig struct {
	Code          string   `json:"code"`
	Exchange      string   `json:"exchange"`
	SecurityTypes []string `json:"securityTypes"`
	Securities    []string `json:"securities"`
}

// AuditConfig describes the PostgreSQL audit sink.
type AuditConfig struct {
	Enabled         bool              `json:"enabled"`
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	User            string            `json:"user"`
	Password        string            `json:"password"`
	Database        string            `json:"database"`
	SSLMode         string            `json:"sslMode"`
	Params          map[string]string `json:"params"`
	ConnString      string            `json:"connString"`
	MaxOpenConns    int               `json:"maxOpenConns"`
	MaxIdleConns    int               `json:"maxIdleConns"`
	ConnMaxLifetime string            `json:"connMaxLifetime"`
	Migrate         *bool             `json:"migrate"`
	Buffer          int               `json:"buffer"`
	BatchSize       int               `json:"batchSize"`
	FlushInterval   string            `json:"flushInterval"`
}

// CaptureConfig describes the capture writer.
type CaptureConfig struct {
	Enabled          bool   `json:"enabled"`
	Dir              string `json:"dir"`
	OnlyUncorrelated bool   `json:"onlyUncorrelated"`
	SegmentMaxBytes  int64  `json:"segmentMaxBytes"`
	SegmentDuration  string `json:"segmentDuration"`
	QueueSize        int    `json:"queueSize"`
	FlushInterval    string `json:"flushInterval"`
	SyncInterval     string `json:"syncInterval"`
}

// ProfilingConfig describes continuous profiling.
type ProfilingConfig struct {
	Enabled         bool              `json:"enabled"`
	ApplicationName string            `json:"applicationName"`
	ServerAddress   string            `json:"serverAddress"`
	Tags            map[string]string `json:"tags"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Dispatch dispatch.Config
	// Schedule is nil when no schedule is configured.
	Schedule        *schedule.WorkingTime
	EnforceSchedule bool
	Boards          *lookup.Registry
	Audit           AuditSpec
	Capture         CaptureSpec
	Profiling       ProfilingConfig
}

// AuditSpec is the resolved audit sink definition.
type AuditSpec struct {
	Enabled  bool
	Migrate  bool
	Postgres conn.Option
	Sink     audit.Config
}

// CaptureSpec is the resolved capture writer definition.
type CaptureSpec struct {
	Enabled          bool
	OnlyUncorrelated bool
	Writer           recorder.Config
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse resolves a JSON config document.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	return Resolve(cfg)
}

// Resolve validates cfg and fills in defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	dispatchCfg, err := resolveDispatch(cfg.Dispatch)
	if err != nil {
		return Loaded{}, err
	}
	sched, err := resolveSchedule(cfg.Schedule)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Schedule.Enforce && sched == nil {
		return Loaded{}, errors.Wrap(exception.ErrInvalidArgument, "schedule is enforced but not configured")
	}
	boards, err := buildBoards(cfg.Boards)
	if err != nil {
		return Loaded{}, err
	}
	auditSpec, err := resolveAudit(cfg.Audit)
	if err != nil {
		return Loaded{}, err
	}
	captureSpec, err := resolveCapture(cfg.Capture)
	if err != nil {
		return Loaded{}, err
	}
	profiling, err := resolveProfiling(cfg.Profiling)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Dispatch:        dispatchCfg,
		Schedule:        sched,
		EnforceSchedule: cfg.Schedule.Enforce,
		Boards:          boards,
		Audit:           auditSpec,
		Capture:         captureSpec,
		Profiling:       profiling,
	}, nil
}

func resolveDispatch(cfg DispatchConfig) (dispatch.Config, error) {
	if cfg.Workers < 0 || cfg.QueueCapacity < 0 || cfg.Shards < 0 {
		return dispatch.Config{}, errors.Wrap(exception.ErrInvalidArgument, "dispatch sizes must be >= 0")
	}
	return dispatch.Config{
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
		Shards:        cfg.Shards,
	}, nil
}

func resolveSchedule(cfg ScheduleConfig) (*schedule.WorkingTime, error) {
	window, err := schedule.ParseWindow(cfg.Window)
	if err != nil {
		return nil, err
	}
	if cfg.MIC != "" {
		if cfg.Timezone != "" {
			return nil, errors.Wrap(exception.ErrInvalidArgument, "schedule timezone comes from the mic calendar")
		}
		return schedule.ForExchange(cfg.MIC, window)
	}
	if cfg.Timezone == "" && window.IsZero() {
		return nil, nil
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, errors.Wrapf(exception.ErrInvalidArgument, "timezone %q, err: %+v", cfg.Timezone, err)
		}
	}
	return schedule.Weekdays(loc, window), nil
}

func buildBoards(cfgs []BoardConfig) (*lookup.Registry, error) {
	reg := lookup.NewRegistry()
	for _, cfg := range cfgs {
		board := message.Board{
			Code:     cfg.Code,
			Exchange: cfg.Exchange,
		}
		for _, st := range cfg.SecurityTypes {
			board.SecurityTypes = append(board.SecurityTypes, message.SecurityType(strings.ToLower(st)))
		}
		for _, code := range cfg.Securities {
			board.Securities = append(board.Securities, message.SecurityID{SecurityCode: code, BoardCode: cfg.Code})
		}
		if err := reg.Add(board); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveAudit(cfg AuditConfig) (AuditSpec, error) {
	if !cfg.Enabled {
		return AuditSpec{}, nil
	}
	lifetime, err := parseDuration("audit connMaxLifetime", cfg.ConnMaxLifetime)
	if err != nil {
		return AuditSpec{}, err
	}
	flush, err := parseDuration("audit flushInterval", cfg.FlushInterval)
	if err != nil {
		return AuditSpec{}, err
	}
	opt := conn.Option{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		Params:          cfg.Params,
		ConnString:      cfg.ConnString,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: lifetime,
	}
	if opt.IsZero() {
		return AuditSpec{}, errors.Wrap(exception.ErrInvalidArgument, "audit is enabled without a database")
	}
	migrate := true
	if cfg.Migrate != nil {
		migrate = *cfg.Migrate
	}
	return AuditSpec{
		Enabled:  true,
		Migrate:  migrate,
		Postgres: opt,
		Sink: audit.Config{
			Buffer:        cfg.Buffer,
			BatchSize:     cfg.BatchSize,
			FlushInterval: flush,
		},
	}, nil
}

func resolveCapture(cfg CaptureConfig) (CaptureSpec, error) {
	if !cfg.Enabled {
		return CaptureSpec{}, nil
	}
	segment, err := parseDuration("capture segmentDuration", cfg.SegmentDuration)
	if err != nil {
		return CaptureSpec{}, err
	}
	flush, err := parseDuration("capture flushInterval", cfg.FlushInterval)
	if err != nil {
		return CaptureSpec{}, err
	}
	syncEvery, err := parseDuration("capture syncInterval", cfg.SyncInterval)
	if err != nil {
		return CaptureSpec{}, err
	}

	writer := recorder.DefaultConfig(cfg.Dir)
	if cfg.SegmentMaxBytes > 0 {
		writer.SegmentMaxBytes = cfg.SegmentMaxBytes
	}
	if segment > 0 {
		writer.SegmentMaxDuration = segment
	}
	if cfg.QueueSize > 0 {
		writer.QueueSize = cfg.QueueSize
	}
	if flush > 0 {
		writer.FlushInterval = flush
	}
	writer.SyncInterval = syncEvery
	if err := writer.Validate(); err != nil {
		return CaptureSpec{}, err
	}
	return CaptureSpec{
		Enabled:          true,
		OnlyUncorrelated: cfg.OnlyUncorrelated,
		Writer:           writer,
	}, nil
}

func resolveProfiling(cfg ProfilingConfig) (ProfilingConfig, error) {
	if !cfg.Enabled {
		return ProfilingConfig{}, nil
	}
	if cfg.ServerAddress == "" {
		return ProfilingConfig{}, errors.Wrap(exception.ErrInvalidArgument, "profiling is enabled without a server address")
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = defaultApplicationName
	}
	return cfg, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "%s %q", name, value)
	}
	return d, nil
}
