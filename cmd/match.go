package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Identify the enrolled people in a photo",
	Long: `Detect every face in an image file and rank the enrolled users
most similar to each face. Nothing is recorded.

Examples:
  # Best match per face at the configured threshold
  face-attendance match class.jpg

  # Top 3 candidates per face with a looser threshold
  face-attendance match class.jpg --limit 3 --threshold 0.45

  # Save a copy with matched faces boxed in green, unknown in red
  face-attendance match class.jpg --annotate class-matched.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("threshold", 0, "Minimum cosine similarity (default MATCH_THRESHOLD)")
	matchCmd.Flags().Int("limit", 1, "Candidates to list per face")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
	matchCmd.Flags().String("annotate", "", "Write a JPEG copy with face boxes to this path")
}

// MatchedIdentity is one ranked candidate for a face
type MatchedIdentity struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name,omitempty"`
	Email  string  `json:"email,omitempty"`
	Score  float64 `json:"score"`
}

// MatchedFace is a detected face and its ranked candidates
type MatchedFace struct {
	Face       int               `json:"face"`
	BBox       [4]float64        `json:"bbox"`
	Confidence float64           `json:"det_score"`
	Matches    []MatchedIdentity `json:"matches"`
}

// MatchOutput is the JSON output of the match command
type MatchOutput struct {
	Image     string        `json:"image"`
	Threshold float64       `json:"threshold"`
	Faces     []MatchedFace `json:"faces"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	limit := min(max(mustGetInt(cmd, "limit"), 1), constants.MaxIdentifyLimit)
	threshold := optionalFloat64(cmd, "threshold")
	annotatePath := mustGetString(cmd, "annotate")

	photo, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
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

	source, _, err := newSource(ctx, cfg, b, logger)
	if err != nil {
		return err
	}
	service := newService(cfg, b, detector, source, logger)

	faces, err := service.Identify(ctx, photo, threshold, limit)
	if err != nil {
		if errors.Is(err, vision.ErrInvalidImage) {
			return fmt.Errorf("%s is not a supported image: %w", args[0], err)
		}
		return err
	}

	output := MatchOutput{Image: args[0], Threshold: service.Threshold(), Faces: resolveMatches(ctx, b.users, faces)}
	if threshold != nil {
		output.Threshold = *threshold
	}

	if annotatePath != "" {
		if err := writeAnnotated(annotatePath, photo, output.Faces); err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(output)
	}
	printMatchTable(output)
	if annotatePath != "" {
		fmt.Printf("\nAnnotated image saved to %s\n", annotatePath)
	}
	return nil
}

// resolveMatches attaches names and emails to the ranked identities.
func resolveMatches(ctx context.Context, users database.UserReader, faces []attendance.FaceMatches) []MatchedFace {
	cache := make(map[int64]*database.User)
	out := make([]MatchedFace, len(faces))
	for i, f := range faces {
		mf := MatchedFace{Face: f.Face, BBox: f.BBox, Confidence: f.Score, Matches: []MatchedIdentity{}}
		for _, m := range f.Matches {
			id := MatchedIdentity{UserID: m.Identity, Score: m.Score}
			u, ok := cache[m.Identity]
			if !ok {
				u, _ = users.GetUser(ctx, m.Identity)
				cache[m.Identity] = u
			}
			if u != nil {
				id.Name = u.FullName()
				id.Email = u.Email
			}
			mf.Matches = append(mf.Matches, id)
		}
		out[i] = mf
	}
	return out
}

func writeAnnotated(path string, photo []byte, faces []MatchedFace) error {
	boxes := make([][4]float64, len(faces))
	matched := make([]bool, len(faces))
	for i, f := range faces {
		boxes[i] = f.BBox
		matched[i] = len(f.Matches) > 0
	}
	img, err := annotateFaces(photo, boxes, matched)
	if err != nil {
		return err
	}
	return saveJPEG(path, img)
}

func printMatchTable(output MatchOutput) {
	fmt.Printf("Image:     %s\n", output.Image)
	fmt.Printf("Threshold: %.2f\n", output.Threshold)
	fmt.Printf("Faces:     %d\n\n", len(output.Faces))
	if len(output.Faces) == 0 {
		fmt.Println("No faces detected.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tRANK\tUSER ID\tNAME\tEMAIL\tSCORE")
	for _, f := range output.Faces {
		if len(f.Matches) == 0 {
			fmt.Fprintf(w, "%d\t-\t-\tunknown\t-\t-\n", f.Face)
			continue
		}
		for rank, m := range f.Matches {
			fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%.4f\n", f.Face, rank+1, m.UserID, m.Name, m.Email, m.Score)
		}
	}
	w.Flush()
}
