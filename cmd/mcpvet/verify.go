package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mcpvet/mcpvet-core/pkg/llm"
	"github.com/mcpvet/mcpvet-core/pkg/pipeline"
	"github.com/mcpvet/mcpvet-core/pkg/registry"
	"github.com/mcpvet/mcpvet-core/pkg/report"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

var (
	flagDescription string
	flagConfig      string
	flagJSON        bool
	flagName        string
	flagRegistry    string
	flagStorage     string
	flagInstallDeps bool
	flagVerbose     bool
)

func init() {
	verifyCmd.Flags().StringVarP(&flagDescription, "description", "d", "", "Server description to verify against (required)")
	verifyCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Path to YAML config file")
	verifyCmd.Flags().BoolVar(&flagJSON, "json", false, "Output results as JSON")
	verifyCmd.Flags().StringVar(&flagName, "name", "", "Register the server under this name on approval")
	verifyCmd.Flags().StringVar(&flagRegistry, "registry", defaultRegistryPath(), "Path to the registry file")
	verifyCmd.Flags().StringVar(&flagStorage, "storage", defaultStoragePath(), "Directory for stored server files")
	verifyCmd.Flags().BoolVar(&flagInstallDeps, "install-deps", false, "Install server dependencies before startup verification")
	verifyCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	_ = verifyCmd.MarkFlagRequired("description")

	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [archive]",
	Short: "Verify an MCP server archive",
	Long: `Verify an uploaded MCP server archive: static security and guideline
analysis, description matching, and an empirical startup check. Exits 0 when
the server is approved, 1 when it is rejected or verification errors.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(flagVerbose)

		config := pipeline.DefaultEngineConfig()
		if flagConfig != "" {
			loaded, err := pipeline.LoadConfig(flagConfig)
			if err != nil {
				return err
			}
			config = loaded
		}
		if flagInstallDeps {
			config.InstallDeps = true
		}

		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:   config.Model,
			BaseURL: config.BaseURL,
		}, logger)
		if err != nil {
			return err
		}

		engine := pipeline.NewEngine(config, client, logger)
		result, err := engine.Verify(context.Background(), args[0], flagDescription)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during verification: %v\n", err)
			os.Exit(1)
		}

		var attestation string
		if result.Approved && flagName != "" {
			attestation, err = registerServer(config, result, args[0], logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error registering server: %v\n", err)
				os.Exit(1)
			}
		}

		if flagJSON {
			printJSONResult(result, attestation)
		} else {
			printTextResult(result, attestation)
		}

		if !result.Approved {
			os.Exit(1)
		}
		return nil
	},
}

// registerServer re-runs intake classification just far enough to store
// the approved server and returns a signed attestation when a key is
// configured.
func registerServer(config *pipeline.EngineConfig, result *report.VerificationReport, archivePath string, logger *slog.Logger) (string, error) {
	store, err := registry.Open(flagRegistry)
	if err != nil {
		return "", err
	}

	serverPath, serverType, cleanup, err := pipeline.ExtractForStorage(context.Background(), config, archivePath, logger)
	if err != nil {
		return "", err
	}
	defer cleanup()

	if _, err := pipeline.RegisterApproved(store, flagStorage, flagName, serverPath, flagDescription, serverType); err != nil {
		return "", err
	}
	logger.Info("server registered", "name", flagName)

	if config.SigningKeyPath == "" {
		return "", nil
	}
	key, err := report.LoadSigningKey(config.SigningKeyPath)
	if err != nil {
		return "", err
	}
	return report.Sign(report.NewAttestation(flagName, result), key)
}

type verifyOutput struct {
	*report.VerificationReport
	Attestation string `json:"attestation,omitempty"`
}

func printJSONResult(result *report.VerificationReport, attestation string) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(verifyOutput{VerificationReport: result, Attestation: attestation})
}

func printTextResult(result *report.VerificationReport, attestation string) {
	if result.Approved {
		fmt.Println("✅ MCP SERVER VERIFICATION PASSED")
	} else {
		fmt.Println("❌ MCP SERVER VERIFICATION FAILED")
	}

	if len(result.SecurityIssues) > 0 {
		fmt.Println("\nSECURITY ISSUES:")
		for _, issue := range result.SecurityIssues {
			icon := "⚠️"
			if issue.Severity == verification.SeverityHigh {
				icon = "❌"
			}
			fmt.Printf("%s [%s] %s (%s)\n    Fix: %s\n",
				icon, issue.Severity, issue.Description, issue.Location, issue.Recommendation)
		}
	}

	if len(result.GuidelineViolations) > 0 {
		fmt.Println("\nGUIDELINE VIOLATIONS:")
		for _, violation := range result.GuidelineViolations {
			fmt.Printf("⚠️ %s: %s\n    Impact: %s\n",
				violation.Rule, violation.Description, violation.Impact)
		}
	}

	fmt.Printf("\nDescription Match: %.1f%%\n", result.DescriptionMatch*100)
	if attestation != "" {
		fmt.Printf("Attestation: %s\n", attestation)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mcpvet-registry.json"
	}
	return filepath.Join(home, ".mcpvet", "registry.json")
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mcpvet-servers"
	}
	return filepath.Join(home, ".mcpvet", "servers")
}
