package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/dbsmedya/pipelinectl/internal/config"
	"github.com/dbsmedya/pipelinectl/internal/ledger"
	"github.com/dbsmedya/pipelinectl/internal/logger"
	"github.com/dbsmedya/pipelinectl/internal/monitor"
	"github.com/dbsmedya/pipelinectl/internal/procdriver"
	"github.com/dbsmedya/pipelinectl/internal/scheduler"
)

// LedgerInput bundles a STATUS_HANDLER.CONFIG block with the collaborators a
// Ledger constructor needs beyond its own config.
type LedgerInput struct {
	Config config.StatusHandlerFiles
	Logger *logger.Logger
	Ctx    context.Context
}

// LedgerFactories resolves STATUS_HANDLER.TYPE to a ledger.Ledger constructor.
var LedgerFactories = New[LedgerInput, ledger.Ledger]()

// ProcEnvInput bundles a PROC_ENV.CONFIG block with the collaborators a
// ProcessingDriver constructor needs beyond its own config.
type ProcEnvInput struct {
	Config config.ProcEnvDriverConfig
	Ledger ledger.Ledger
	Logger *logger.Logger
}

// ProcEnvFactories resolves PROC_ENV.TYPE to a scheduler.ProcessingDriver
// constructor.
var ProcEnvFactories = New[ProcEnvInput, scheduler.ProcessingDriver]()

// SinkInput bundles a STATUS_MONITOR.CONFIG free-form block with the output
// stream a terminal-flavored sink defaults to.
type SinkInput struct {
	Config map[string]interface{}
	Out    io.Writer
}

// SinkFactories resolves STATUS_MONITOR.TYPE to a monitor.Sink constructor.
var SinkFactories = New[SinkInput, monitor.Sink]()

// SourceInput bundles a DATA_PROVIDER.CONFIG free-form block with the
// collaborators a Source constructor needs.
type SourceInput struct {
	Config map[string]interface{}
	Ledger ledger.Ledger
	Logger *logger.Logger
}

// SourceFactories resolves DATA_PROVIDER.TYPE to a scheduler.Source
// constructor. No concrete Source ships with this module: concrete source
// adapters are external collaborators, deliberately out of scope here. A
// deployment registers its own, e.g. in a blank import's init(), by calling
// SourceFactories.Register(name, factory) before Run.
var SourceFactories = New[SourceInput, scheduler.Source]()

// ExporterInput bundles an EXPORTER.CONFIG free-form block with the
// collaborators an Exporter constructor needs.
type ExporterInput struct {
	Config map[string]interface{}
	Ledger ledger.Ledger
	Logger *logger.Logger
}

// ExporterFactories resolves EXPORTER.TYPE to a scheduler.Exporter
// constructor. No concrete Exporter ships with this module, for the same
// reason as SourceFactories.
var ExporterFactories = New[ExporterInput, scheduler.Exporter]()

// init wires the concrete collaborators that DO ship with this module
// (the reference SQLite ledger, the HTTP/index processing driver, and the
// two Monitor sinks) into their registries. This is a dynamic loader
// realized via a compile-time switch rather than a reflection-based dotted
// import: every name below is resolved at compile time, only the selection
// between them is deferred to configuration.
func init() {
	LedgerFactories.Register("sqlite", func(in LedgerInput) (ledger.Ledger, error) {
		ctx := in.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		return ledger.NewSQLiteLedger(ctx, ledger.Config{DBFile: in.Config.DBFile}, in.Logger)
	})

	ProcEnvFactories.Register("http", func(in ProcEnvInput) (scheduler.ProcessingDriver, error) {
		return procdriver.New(procdriver.Config{
			RemoteHost:      in.Config.RemoteHost,
			RemoteTaskID:    in.Config.RemoteTaskID,
			StatusDir:       in.Config.StatusDir,
			MonitorInterval: in.Config.MonitorInterval,
			IndexHost:       in.Config.IndexHost,
			IndexPort:       in.Config.IndexPort,
			IndexName:       in.Config.IndexName,
			QueryTimeout:    in.Config.QueryTimeout,
			BatchPrefix:     in.Config.BatchPrefix,
			PageSize:        in.Config.PageSize,
		}, in.Ledger, in.Logger, nil, nil), nil
	})

	SinkFactories.Register("terminal", func(in SinkInput) (monitor.Sink, error) {
		return monitor.NewTerminalSink(in.Out), nil
	})

	SinkFactories.Register("slack", func(in SinkInput) (monitor.Sink, error) {
		url, _ := in.Config["webhook_url"].(string)
		if url == "" {
			return nil, fmt.Errorf("registry: slack sink requires config.webhook_url")
		}
		return monitor.NewSlackSink(url), nil
	})
}
