package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/database"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image-path>",
	Short: "Enroll a person's face from an image file",
	Long: `Enroll reads an image file, extracts the single face in it through the
detector sidecar, and stores the embedding for the given person.
The image must contain exactly one face. Re-enrolling overwrites the
previous embedding.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("person", "", "Person code to enroll (required)")
	enrollCmd.MarkFlagRequired("person")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image %s: %w", args[0], err)
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	code := mustGetString(cmd, "person")

	person, err := eng.persons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrPersonNotFound) {
			return fmt.Errorf("no person with code %q", code)
		}
		return err
	}

	person, err = eng.service.Enroll(ctx, person.ID, imageData)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrNoFaceFound):
			return errors.New("no face found in the image; use a clear frontal photo")
		case errors.Is(err, attendance.ErrAmbiguousImage):
			return errors.New("more than one face in the image; crop to a single person")
		}
		return err
	}

	fmt.Printf("Enrolled %s (%s)\n", person.FullName, person.Code)
	return nil
}
