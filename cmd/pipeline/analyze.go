package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"go-insight-pipeline/internal/enrich"
	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/pipeline"
	"go-insight-pipeline/pkg/utils"
)

var (
	analyzeFormat  string
	analyzeSheet   string
	analyzeOut     string
	analyzeTimeout string
	analyzeEnrich  bool
	analyzeExport  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run the pipeline once over a local CSV or XLSX file",
	Long:  "Runs every stage over the file and prints the data summary. Use - to read CSV from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout := utils.ParseDuration(analyzeTimeout, 5*time.Minute)
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		ds, err := loadInput(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		var en enrich.Enricher
		if analyzeEnrich {
			if !cfg.Enrich.Enabled {
				return eris.New("analyze: --enrich needs enrich.enabled and enrich.api_key")
			}
			en = enrich.NewClient(cfg.Enrich.Config)
		}

		summary, cleaned, err := analyze(ctx, ds, en)
		if err != nil {
			return err
		}
		if analyzeExport != "" {
			if err := exportDataset(analyzeExport, cleaned); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if analyzeOut != "" {
			f, err := os.Create(analyzeOut)
			if err != nil {
				return eris.Wrap(err, "analyze: create output")
			}
			defer f.Close()
			out = f
		}
		return writeSummary(out, summary, analyzeFormat)
	},
}

func loadInput(arg string, stdin io.Reader) (model.Dataset, error) {
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return model.Dataset{}, eris.Wrap(err, "analyze: read stdin")
		}
		return pipeline.Load(string(b))
	}
	if analyzeSheet != "" || strings.EqualFold(filepath.Ext(arg), ".xlsx") {
		return pipeline.LoadXLSX(arg, analyzeSheet)
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return model.Dataset{}, eris.Wrapf(err, "analyze: read %s", arg)
	}
	return pipeline.LoadFile(arg, b)
}

// analyze runs the pipeline and, with an enricher, asks it for insights and
// a dashboard blueprint. Enrichment failures fall back to the rule-based
// dashboard.
func analyze(ctx context.Context, ds model.Dataset, en enrich.Enricher) (*model.DataSummary, model.Dataset, error) {
	if en == nil {
		res, err := pipeline.RunDataset(ctx, ds, pipeline.Options{})
		if err != nil {
			return nil, model.Dataset{}, err
		}
		return res.Summary, res.Dataset, nil
	}

	res, err := pipeline.RunDataset(ctx, ds, pipeline.Options{SkipDashboard: true})
	if err != nil {
		return nil, model.Dataset{}, err
	}
	summary := res.Summary

	out := enrich.Run(ctx, en, summary)
	if out.InsightsErr != nil {
		zap.L().Warn("analyze: insights failed", zap.Error(out.InsightsErr))
	}
	bp := out.Blueprint
	if bp == nil {
		if out.BlueprintErr != nil {
			zap.L().Warn("analyze: blueprint failed, using fallback", zap.Error(out.BlueprintErr))
		}
		fb := pipeline.FallbackBlueprint(res.Columns)
		bp = &fb
	}

	final := *summary
	final.Dashboard = pipeline.ExecuteBlueprint(res.Dataset, res.Columns, *bp)
	final.Insights = out.Insights
	return &final, res.Dataset, nil
}

// exportDataset writes the cleaned dataset in the format implied by path.
func exportDataset(path string, ds model.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "analyze: create export")
	}
	defer f.Close()

	n, err := pipeline.Export(f, ds, pipeline.FormatFromPath(path))
	if err != nil {
		return eris.Wrapf(err, "analyze: export %s", path)
	}
	zap.L().Info("analyze: dataset exported", zap.String("path", path), zap.Int("rows", n))
	return eris.Wrap(f.Close(), "analyze: close export")
}

func writeSummary(w io.Writer, summary *model.DataSummary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(summary), "analyze: encode json")
	case "yaml":
		// Round-trip through JSON so field names and Value encoding match the API.
		b, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "analyze: encode json")
		}
		var doc interface{}
		if err := json.Unmarshal(b, &doc); err != nil {
			return eris.Wrap(err, "analyze: decode json")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "analyze: encode yaml")
		}
		return eris.Wrap(enc.Close(), "analyze: flush yaml")
	default:
		return eris.Errorf("analyze: unknown format %q", format)
	}
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "output format: json or yaml")
	analyzeCmd.Flags().StringVar(&analyzeSheet, "sheet", "", "spreadsheet sheet name (default first sheet)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "write the summary to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeTimeout, "timeout", "5m", "maximum run time")
	analyzeCmd.Flags().StringVar(&analyzeExport, "export", "", "also write the cleaned dataset (.csv, .json or .xlsx)")
	analyzeCmd.Flags().BoolVar(&analyzeEnrich, "enrich", false, "ask the configured model for insights and a dashboard")
	rootCmd.AddCommand(analyzeCmd)
}
