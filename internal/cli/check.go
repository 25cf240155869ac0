package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/urlsentry/urlsentry-go/internal/classify"
)

var (
	checkRules  string
	checkModel  string
	checkFormat string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkRules, "rules", "", "Path to rule lists YAML (optional)")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "Path to model coefficients JSON (optional)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check URL [URL...]",
	Short: "Classify URLs without starting a server",
	Long: "Runs each URL through the classification pipeline and prints the\n" +
		"verdict.\n\n" +
		"Exit code 0 if every URL is safe, 1 if any is malicious.\n" +
		"Use in CI or scripts to gate on URL safety.",
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	lists, err := classify.LoadLists(checkRules)
	if err != nil {
		return err
	}

	var scorer classify.Scorer
	if checkModel != "" {
		cs, err := classify.LoadCoeffScorer(checkModel)
		if err != nil {
			return fmt.Errorf("load model: %w", err)
		}
		scorer = cs
	}

	// One-shot run — keep pipeline logging out of the output.
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pipeline := classify.NewPipeline(classify.NewEngine(lists), scorer, logger)

	ctx := context.Background()
	var verdicts []*classify.Verdict
	malicious := false
	for _, raw := range args {
		v, err := pipeline.Evaluate(ctx, raw)
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		verdicts = append(verdicts, v)
		if v.Prediction == classify.PredictionMalicious {
			malicious = true
		}
	}

	switch checkFormat {
	case "json":
		out, err := json.MarshalIndent(verdicts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		for _, v := range verdicts {
			label := "safe     "
			if v.Prediction == classify.PredictionMalicious {
				label = "MALICIOUS"
			}
			fmt.Printf("%s  confidence=%5.1f  method=%s  %s\n", label, v.Confidence, v.Method, v.URL)
		}
	}

	if malicious {
		os.Exit(1)
	}
	return nil
}
