package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tailorResumePath string
	tailorJob        string
	tailorMode       string
	tailorOut        string
	tailorExport     string
)

// tailorCmd runs the pipeline once on local files, without the database,
// the queue or object storage.
var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor a resume to one job and print the result",
	Example: `  resumetailor tailor --resume cv.pdf --job job.txt
  resumetailor tailor --resume cv.docx --job https://example.com/jobs/123 --export out.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.require("GOOGLE_API_KEY"); err != nil {
			return err
		}
		mode := cfg.TailorMode
		if tailorMode != "" {
			mode = strings.ToLower(tailorMode)
		}
		if tailorOut != "json" && tailorOut != "md" {
			return fmt.Errorf("invalid --out %q: want json or md", tailorOut)
		}
		var exportFormat string
		if tailorExport != "" {
			var err error
			if exportFormat, err = exportFormatFromPath(tailorExport); err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		resumeData, err := os.ReadFile(tailorResumePath)
		if err != nil {
			return err
		}
		resumeText, err := ExtractResumeText("", tailorResumePath, resumeData)
		if err != nil {
			return err
		}

		var profile JobProfile
		if strings.HasPrefix(tailorJob, "http://") || strings.HasPrefix(tailorJob, "https://") {
			intake, closeIntake, err := buildIntake(ctx, cfg)
			if err != nil {
				return err
			}
			profile, err = intake.fromLink(ctx, tailorJob)
			closeIntake()
			if err != nil {
				return err
			}
		} else {
			data, err := os.ReadFile(tailorJob)
			if err != nil {
				return err
			}
			if profile, err = jobFromFile(tailorJob, data); err != nil {
				return err
			}
		}
		logger.Info("tailoring", zap.String("job_title", formatJobTitle(profile)), zap.String("mode", mode))

		tailor, err := buildTailorer(ctx, cfg, mode)
		if err != nil {
			return err
		}
		result, err := tailor.Tailor(ctx, resumeText, jobText(formatJobTitle(profile), profile.JobDescription))
		if err != nil {
			return err
		}

		if tailorExport != "" {
			data, _, _, err := ExportResume(formatJobTitle(profile), result.TailoredResume, exportFormat, time.Now())
			if err != nil {
				return err
			}
			if err := os.WriteFile(tailorExport, data, 0o644); err != nil {
				return err
			}
			logger.Info("exported", zap.String("path", tailorExport))
		}

		out := cmd.OutOrStdout()
		if tailorOut == "md" {
			_, err = fmt.Fprintln(out, result.TailoredResume)
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	tailorCmd.Flags().StringVar(&tailorResumePath, "resume", "", "Resume file (pdf, docx, md, txt, html)")
	tailorCmd.Flags().StringVar(&tailorJob, "job", "", "Job file (txt, md, json, csv, xlsx) or job page URL")
	tailorCmd.Flags().StringVar(&tailorMode, "mode", "", "Tailor mode: crew or single (default from TAILOR_MODE)")
	tailorCmd.Flags().StringVar(&tailorOut, "out", "json", "Output: json or md")
	tailorCmd.Flags().StringVar(&tailorExport, "export", "", "Also write the tailored resume to this .pdf, .docx or .md file")
	_ = tailorCmd.MarkFlagRequired("resume")
	_ = tailorCmd.MarkFlagRequired("job")
}

// exportFormatFromPath picks the export format from the file extension.
func exportFormatFromPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid --export %q: want a .pdf, .docx or .md file", path)
	}
}

// jobFromFile reads a single job posting. Plain text files use their first
// line as the title.
func jobFromFile(name string, data []byte) (JobProfile, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		var p JobProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("invalid job json: %w", err)
		}
		if p.JobTitle == "" || p.JobDescription == "" {
			return p, errors.New("job json needs job_title and job_description")
		}
		return p, nil
	case ".csv", ".xlsx":
		rows, err := readSpreadsheetRows(name, data)
		if err != nil {
			return JobProfile{}, err
		}
		profiles, err := jobsFromRows(rows)
		if err != nil {
			return JobProfile{}, err
		}
		if len(profiles) == 0 {
			return JobProfile{}, errors.New("no job rows found")
		}
		return profiles[0], nil
	}

	text, err := ExtractResumeText("", name, data)
	if err != nil {
		return JobProfile{}, err
	}
	title, description, _ := strings.Cut(text, "\n")
	title = strings.TrimSpace(strings.TrimLeft(title, "# "))
	if strings.TrimSpace(description) == "" {
		return JobProfile{}, errors.New("job file needs a title line followed by the description")
	}
	return JobProfile{JobTitle: title, JobDescription: strings.TrimSpace(description)}, nil
}
