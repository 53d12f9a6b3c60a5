package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sabio/insight-dash/pkg/app"
	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/render"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (text, json or yaml)", format)
}

func uploadCmd(g *globals) *cobra.Command {
	var (
		output string
		export bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV or Excel file and print its dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			a, done, err := g.setup(app.Views{})
			if err != nil {
				return err
			}
			defer done()

			if err := a.Coordinator.Dispatch(cmd.Context(), session.FileFromPath(args[0])); err != nil {
				return errors.New(a.Recorder.Snapshot().Status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, a.Recorder.Snapshot().Status)
			if err := printDashboard(out, output, a.Coordinator.Dashboard(), a.ChartPaths()); err != nil {
				return err
			}

			if export {
				path, err := a.Coordinator.Export(cmd.Context())
				if err != nil {
					return errors.New(transfer.Detail(err))
				}
				fmt.Fprintf(out, "Report saved to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", outputText, "Dashboard output format: text, json or yaml")
	cmd.Flags().BoolVar(&export, "export", false, "Also export the PDF report")
	return cmd
}

func dashboardCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Fetch and print the dashboard for the last uploaded file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			a, done, err := g.setup(app.Views{})
			if err != nil {
				return err
			}
			defer done()

			payload, err := a.Client.FetchDashboard(cmd.Context())
			if err != nil {
				return errors.New(transfer.Detail(err))
			}
			if err := a.Presenter.Present(payload); err != nil {
				var cerr *dashboard.ChartError
				if !errors.As(err, &cerr) {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", cerr)
			}
			return printDashboard(cmd.OutOrStdout(), output, payload, a.ChartPaths())
		},
	}

	cmd.Flags().StringVar(&output, "output", outputText, "Output format: text, json or yaml")
	return cmd
}

func chatCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Ask the assistant about the uploaded data",
		Long: `Ask one question given as arguments, or read one question per line from
stdin when no arguments are given. Plot answers are saved as PNG files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.setup(app.Views{})
			if err != nil {
				return err
			}
			defer done()

			plotDir := filepath.Join(a.Config.Output.Dir, "plots")
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				return ask(cmd.Context(), a, out, plotDir, strings.Join(args, " "))
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if err := ask(cmd.Context(), a, out, plotDir, scanner.Text()); err != nil && !errors.Is(err, chat.ErrEmptyInput) {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			}
			return scanner.Err()
		},
	}
}

func ask(ctx context.Context, a *app.App, out io.Writer, plotDir, text string) error {
	entry, err := a.Coordinator.Ask(ctx, text)
	if errors.Is(err, chat.ErrEmptyInput) {
		return err
	}
	fmt.Fprintln(out, entry.Text)
	if err != nil {
		return errors.New(transfer.Detail(err))
	}

	if entry.Kind == chat.KindPlot {
		r, err := chat.Render(entry)
		if err != nil {
			return err
		}
		path, err := render.SaveImage(plotDir, "plot-"+entry.ID+".png", r.Image)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Chart saved to %s\n", path)
	}
	return nil
}

func exportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Download the PDF report for the last uploaded file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.setup(app.Views{})
			if err != nil {
				return err
			}
			defer done()

			pdf, err := a.Client.RequestExport(cmd.Context())
			if err != nil {
				return errors.New(transfer.Detail(err))
			}
			path, err := session.FileDownloader{Dir: a.Config.Output.Dir}.Download(session.ExportFileName, pdf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", path)
			return nil
		},
	}
}

func pingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the analytics backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.setup(app.Views{})
			if err != nil {
				return err
			}
			defer done()

			if err := a.Client.Ping(cmd.Context()); err != nil {
				return errors.New(transfer.Detail(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend reachable at %s\n", a.Client.BaseURL())
			return nil
		},
	}
}

// dashboardDoc is the json/yaml form of a printed dashboard.
type dashboardDoc struct {
	KPIs       dashboard.KPIs       `json:"kpis" yaml:"kpis"`
	Summary    string               `json:"summary" yaml:"summary"`
	Charts     []dashboard.ChartKey `json:"charts" yaml:"charts"`
	ChartFiles []string             `json:"chart_files,omitempty" yaml:"chart_files,omitempty"`
}

func printDashboard(w io.Writer, format string, payload *dashboard.Payload, chartFiles []string) error {
	if payload == nil {
		return errors.New("no dashboard loaded")
	}

	doc := dashboardDoc{KPIs: payload.KPIs, Summary: payload.Summary, ChartFiles: chartFiles}
	for _, key := range dashboard.AllChartKeys {
		if _, ok := payload.Charts[key]; ok {
			doc.Charts = append(doc.Charts, key)
		}
	}

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(w, "Total sales:          %s\n", payload.KPIs.TotalSales)
	fmt.Fprintf(w, "Units sold:           %s\n", payload.KPIs.TotalUnits)
	fmt.Fprintf(w, "Average satisfaction: %s\n", payload.KPIs.AvgSatisfaction)
	fmt.Fprintf(w, "\n%s\n", payload.Summary)
	if len(chartFiles) > 0 {
		fmt.Fprintln(w, "\nCharts:")
		for _, f := range chartFiles {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	return nil
}
