package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"shaderlab/internal/checkpipeline"
	"shaderlab/internal/ui"
)

type checkOutcome struct {
	report checkpipeline.Report
	err    error
}

// runCheckWithUI runs the batch check while a progress view consumes its
// events. The view exits when the event channel closes; quitting it with
// Ctrl+C cancels the check.
func runCheckWithUI(ctx context.Context, title string, displayFiles []string, req *checkpipeline.Request) (checkpipeline.Report, error) {
	if req == nil {
		return checkpipeline.Report{}, fmt.Errorf("missing check request")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan checkpipeline.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = checkpipeline.ChannelSink{Ch: events}
		report, err := checkpipeline.Run(ctx, &reqCopy)
		outcomeCh <- checkOutcome{report: report, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, displayFiles, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// The view may quit before the last event; keep the sink unblocked.
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
