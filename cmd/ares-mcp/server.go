package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aresml/arescfg"
	"github.com/aresml/arescfg/internal/logging"
)

const version = "1.0.0"

// server is the ARES MCP server.
type server struct {
	engine *arescfg.Engine
	logger *slog.Logger
	poller *poller
	mcp    *mcp.Server

	// mu serializes tools that read or write the config file.
	mu sync.Mutex
}

func newServer(engine *arescfg.Engine, logger *slog.Logger) *server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &server{
		engine: engine,
		logger: logger,
		poller: newPoller(engine, logger),
		mcp:    mcp.NewServer(&mcp.Implementation{Name: "ares", Version: version}, nil),
	}
	s.registerTools()
	return s
}

// run serves the tools on t until the client disconnects or ctx is done.
func (s *server) run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("ares-mcp starting", "config", s.engine.ConfigPath(), "script", s.engine.Settings().Paths.Script)
	return s.mcp.Run(ctx, t)
}

func (s *server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "config_get",
		Description: "Get the ARES training configuration, or one setting of it. Returns the defaults for this machine when nothing is saved yet.",
	}, s.configGet)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "config_set",
		Description: "Change one training setting and save the configuration. The change is recorded in history. Run script_patch afterwards to write it into the training script.",
	}, s.configSet)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "config_defaults",
		Description: "Get the default configuration for this machine (device and save path depend on the detected accelerator and notebook host). Optionally save them.",
	}, s.configDefaults)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "script_patch",
		Description: "Write the saved configuration into the training script by rewriting its `name = value` assignment lines.",
	}, s.scriptPatch)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "feeds_check",
		Description: "Fetch and parse every configured RSS feed and report which ones are healthy. Returns the background poller's last result when available unless refresh is set.",
	}, s.feedsCheck)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "history_list",
		Description: "List saved configuration snapshots (or script patch events), newest first.",
	}, s.historyList)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "history_restore",
		Description: "Make a saved configuration snapshot current again.",
	}, s.historyRestore)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "host_describe",
		Description: "Describe the machine: CPU, cores, vector extensions, CUDA devices, accelerator and hosted notebook detection.",
	}, s.hostDescribe)
}

func (s *server) configGet(ctx context.Context, req *mcp.CallToolRequest, in configGetInput) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.engine.Load()
	if err != nil {
		return nil, nil, err
	}
	if in.Key == nil || *in.Key == "" {
		return jsonResult(h)
	}
	v, err := h.Get(*in.Key)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"key": *in.Key, "value": v})
}

func (s *server) configSet(ctx context.Context, req *mcp.CallToolRequest, in configSetInput) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.engine.Set(in.Key, in.Value)
	if err != nil {
		return nil, nil, err
	}
	v, _ := h.Get(in.Key)
	return jsonResult(map[string]any{"key": in.Key, "value": v, "config_file": s.engine.ConfigPath()})
}

func (s *server) configDefaults(ctx context.Context, req *mcp.CallToolRequest, in configDefaultsInput) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Save != nil && *in.Save {
		h, err := s.engine.Reset()
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(h)
	}
	return jsonResult(s.engine.Defaults())
}

func (s *server) scriptPatch(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.engine.Patch()
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(res)
}

func (s *server) feedsCheck(ctx context.Context, req *mcp.CallToolRequest, in feedsCheckInput) (*mcp.CallToolResult, any, error) {
	if in.Refresh == nil || !*in.Refresh {
		if report := s.poller.latest(); report != nil {
			return jsonResult(report)
		}
	}
	report, err := s.poller.poll(ctx)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(report)
}

func (s *server) historyList(ctx context.Context, req *mcp.CallToolRequest, in historyListInput) (*mcp.CallToolResult, any, error) {
	limit := 20
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}

	if in.Patches != nil && *in.Patches {
		events, err := s.engine.Patches(limit)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(events)
	}
	snapshots, err := s.engine.History(limit)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(snapshots)
}

func (s *server) historyRestore(ctx context.Context, req *mcp.CallToolRequest, in historyRestoreInput) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.engine.Restore(in.ID)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(h)
}

func (s *server) hostDescribe(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(s.engine.Host())
}

// jsonResult wraps v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
