package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/capture"
	"github.com/kozaktomas/cashier/internal/config"
	"github.com/kozaktomas/cashier/internal/identity"
)

var recogniseCmd = &cobra.Command{
	Use:   "recognise <image>...",
	Short: "Upload face images to recognition",
	Long: `Upload one or more face images (JPEG, PNG or BMP) to the recognition
endpoint and print who each face belongs to. Images are re-encoded as JPEG
and scaled down the same way the capture loop does before upload.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognise,
}

func init() {
	rootCmd.AddCommand(recogniseCmd)

	recogniseCmd.Flags().Bool("json", false, "Output as JSON")
}

type recogniseResult struct {
	File          string                   `json:"file"`
	Match         *identity.BiometricMatch `json:"match,omitempty"`
	EnrollmentURL string                   `json:"enrollment_url,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

func runRecognise(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	ctx := context.Background()

	client, err := restoreClient(ctx, cfg)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput && len(args) > 1 {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Recognising"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]recogniseResult, 0, len(args))
	failed := 0
	for _, path := range args {
		result := recogniseFile(ctx, cfg, client, path)
		if result.Error != "" {
			failed++
		}
		results = append(results, result)
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printRecogniseResult(r)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

func recogniseFile(ctx context.Context, cfg *config.Config, client capture.Uploader, path string) recogniseResult {
	result := recogniseResult{File: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	frame, err := capture.DecodeFrame(data)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	payload, err := capture.EncodeRegion(frame, frame.Bounds(), cfg.Capture.JPEGQuality)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	rec, err := client.Recognise(ctx, payload)
	if err != nil {
		result.Error = apperr.Message(err, capture.MsgRecognitionFailed)
		return result
	}

	match := identity.Classify(*rec)
	result.Match = &match
	if match.IsNew {
		result.EnrollmentURL = identity.EnrollmentURL(cfg.Enrollment.UserAppURL, match.Profile.ID)
	}
	return result
}

func printRecogniseResult(r recogniseResult) {
	switch {
	case r.Error != "":
		fmt.Printf("%s: error: %s\n", r.File, r.Error)
	case r.Match.IsNew:
		fmt.Printf("%s: new face %s, enroll at %s\n", r.File, r.Match.Profile.ID, r.EnrollmentURL)
	default:
		fmt.Printf("%s: %s (%s)\n", r.File, r.Match.Profile.Username, r.Match.Profile.ID)
	}
}
