package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wlshell/internal/ipc"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, ipc.StatusData, error) {
	status, err := s.control.GetStatus()
	if err != nil {
		return nil, ipc.StatusData{}, err
	}
	return nil, *status, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	data, err := s.control.ListWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}
	out := ListWindowsOutput{Windows: make([]ipc.WindowInfo, 0, len(data.Windows))}
	for _, w := range data.Windows {
		if args.Client != "" && w.Client != args.Client {
			continue
		}
		if args.UnresponsiveOnly && !w.Unresponsive {
			continue
		}
		out.Windows = append(out.Windows, w)
	}
	return nil, out, nil
}

func (s *Server) handleListPopups(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListPopupsInput) (*mcpsdk.CallToolResult, ipc.PopupsData, error) {
	data, err := s.control.ListPopups()
	if err != nil {
		return nil, ipc.PopupsData{}, err
	}
	if data.Stacks == nil {
		data.Stacks = []ipc.PopupStack{}
	}
	if data.Grabs == nil {
		data.Grabs = []ipc.GrabInfo{}
	}
	return nil, *data, nil
}

func (s *Server) handlePingWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args PingWindowInput) (*mcpsdk.CallToolResult, ipc.PingWindowData, error) {
	if args.Surface == 0 {
		return nil, ipc.PingWindowData{}, fmt.Errorf("surface is required")
	}
	data, err := s.control.PingWindow(args.Client, args.Surface)
	if err != nil {
		return nil, ipc.PingWindowData{}, err
	}
	return nil, *data, nil
}

func (s *Server) handleBreakGrabs(_ context.Context, _ *mcpsdk.CallToolRequest, _ BreakGrabsInput) (*mcpsdk.CallToolResult, BreakGrabsOutput, error) {
	n, err := s.control.BreakGrabs()
	if err != nil {
		return nil, BreakGrabsOutput{}, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf("Cancelled %d grab(s)", n)},
		},
	}, BreakGrabsOutput{Cancelled: n}, nil
}
