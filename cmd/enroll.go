package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Bulk-enroll users from a directory of face photos",
	Long: `Register one user per subdirectory and store an embedding for
every usable face photo in it.

Each subdirectory is named after the user's email address and holds the
face photos plus an optional info.yaml:

  students/
    jan.novak@uni.test/
      info.yaml        # first_name, last_name, role (default student)
      1.jpg 2.jpg ...

Without info.yaml the name is taken from the email address. Users that
already exist are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("concurrency", constants.EnrollConcurrency, "Number of users enrolled in parallel")
	enrollCmd.Flags().Bool("dry-run", false, "List what would be enrolled without storing anything")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

// enrollInfo is the optional per-user info.yaml
type enrollInfo struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Role      string `yaml:"role"`
}

// enrollEntry is one user directory ready to register
type enrollEntry struct {
	Dir     string
	Request attendance.RegisterRequest
}

// EnrollOutcome reports the registration of one directory
type EnrollOutcome struct {
	Email      string `json:"email"`
	UserID     int64  `json:"user_id,omitempty"`
	Images     int    `json:"images"`
	Embeddings int    `json:"embeddings_stored"`
	Skipped    int    `json:"images_skipped"`
	Error      string `json:"error,omitempty"`
}

// EnrollResult is the JSON output of the enroll command
type EnrollResult struct {
	Users         int             `json:"users"`
	Enrolled      int             `json:"enrolled"`
	Failed        int             `json:"failed"`
	Embeddings    int             `json:"embeddings_stored"`
	DurationMs    int64           `json:"duration_ms"`
	DurationHuman string          `json:"duration,omitempty"`
	Outcomes      []EnrollOutcome `json:"outcomes"`
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// nameFromEmail splits the local part of an email into first and last name.
func nameFromEmail(email string) (string, string) {
	local, _, _ := strings.Cut(email, "@")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	switch len(parts) {
	case 0:
		return local, local
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// readEnrollDir reads one user directory into a registration request.
func readEnrollDir(dir string) (enrollEntry, error) {
	email := database.NormalizeEmail(filepath.Base(dir))
	entry := enrollEntry{Dir: dir, Request: attendance.RegisterRequest{Email: email}}

	var info enrollInfo
	data, err := os.ReadFile(filepath.Join(dir, constants.EnrollInfoFile)) //nolint:gosec // directory is from the command line
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &info); err != nil {
			return entry, fmt.Errorf("parsing %s: %w", constants.EnrollInfoFile, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return entry, fmt.Errorf("reading %s: %w", constants.EnrollInfoFile, err)
	}
	if info.FirstName == "" || info.LastName == "" {
		first, last := nameFromEmail(email)
		if info.FirstName == "" {
			info.FirstName = first
		}
		if info.LastName == "" {
			info.LastName = last
		}
	}
	entry.Request.FirstName = info.FirstName
	entry.Request.LastName = info.LastName
	entry.Request.Role = database.Role(info.Role)

	files, err := os.ReadDir(dir)
	if err != nil {
		return entry, fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, f := range files {
		if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
			continue
		}
		img, err := os.ReadFile(filepath.Join(dir, f.Name())) //nolint:gosec // directory is from the command line
		if err != nil {
			return entry, fmt.Errorf("reading %s: %w", f.Name(), err)
		}
		entry.Request.Images = append(entry.Request.Images, attendance.Upload{Filename: f.Name(), Data: img})
	}
	return entry, nil
}

// collectEnrollEntries reads every subdirectory of root, sorted by name.
func collectEnrollEntries(root string) ([]enrollEntry, []EnrollOutcome, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", root, err)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name() < dirs[j].Name() })

	var entries []enrollEntry
	var failures []EnrollOutcome
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		entry, err := readEnrollDir(filepath.Join(root, d.Name()))
		if err != nil {
			failures = append(failures, EnrollOutcome{Email: entry.Request.Email, Error: err.Error()})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, failures, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	startTime := time.Now()

	entries, failures, err := collectEnrollEntries(args[0])
	if err != nil {
		return err
	}

	if dryRun {
		for _, e := range entries {
			role := e.Request.Role
			if role == "" {
				role = database.RoleStudent
			}
			fmt.Printf("%-40s %-30s %-8s %d images\n", e.Request.Email, e.Request.FirstName+" "+e.Request.LastName, role, len(e.Request.Images))
		}
		for _, f := range failures {
			fmt.Printf("%-40s error: %s\n", f.Email, f.Error)
		}
		return nil
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	detector := vision.Connect(ctx, cfg.Vision, logger)
	if st := detector.Status(); st.State != vision.Ready {
		return fmt.Errorf("vision model unavailable: %s", st.Reason)
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	source, saveIndex, err := newSource(ctx, cfg, b, logger)
	if err != nil {
		return err
	}
	service := newService(cfg, b, detector, source, logger)

	if !jsonOutput {
		fmt.Printf("Enrolling %d users from %s\n\n", len(entries), args[0])
	}
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(entries),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("users"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	outcomes := make([]EnrollOutcome, len(entries))
	var embeddings int64
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(idx int, e enrollEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := EnrollOutcome{Email: e.Request.Email, Images: len(e.Request.Images)}
			result, err := service.Register(ctx, e.Request)
			if err != nil {
				outcome.Error = err.Error()
			} else {
				outcome.UserID = result.UserID
				outcome.Embeddings = result.EmbeddingsStored
				outcome.Skipped = len(result.Skipped)
				atomic.AddInt64(&embeddings, int64(result.EmbeddingsStored))
			}
			outcomes[idx] = outcome

			if bar != nil {
				bar.Add(1)
			}
		}(i, entry)
	}
	wg.Wait()
	saveIndex()

	if bar != nil {
		fmt.Println()
	}

	outcomes = append(outcomes, failures...)
	duration := time.Since(startTime)
	result := EnrollResult{
		Users:         len(outcomes),
		Embeddings:    int(embeddings),
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
		Outcomes:      outcomes,
	}
	for _, o := range outcomes {
		if o.Error != "" {
			result.Failed++
		} else {
			result.Enrolled++
		}
	}

	if jsonOutput {
		result.DurationHuman = ""
		return outputJSON(result)
	}

	fmt.Printf("\nEnrolled:   %d\n", result.Enrolled)
	fmt.Printf("Failed:     %d\n", result.Failed)
	fmt.Printf("Embeddings: %d\n", result.Embeddings)
	fmt.Printf("Duration:   %s\n", result.DurationHuman)
	for _, o := range outcomes {
		if o.Error != "" {
			fmt.Printf("  %s: %s\n", o.Email, o.Error)
		} else if o.Skipped > 0 {
			fmt.Printf("  %s: %d of %d images had no usable face\n", o.Email, o.Skipped, o.Images)
		}
	}
	return nil
}
