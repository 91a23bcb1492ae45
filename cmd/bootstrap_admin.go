package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/ngxtan/rollcall/internal/database"
)

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the first admin account",
	Long: `Create an admin person so the API can be used. The password is read
from the ROLLCALL_ADMIN_PASSWORD environment variable, or prompted on
the terminal when unset.`,
	RunE: runBootstrapAdmin,
}

func init() {
	rootCmd.AddCommand(bootstrapAdminCmd)

	bootstrapAdminCmd.Flags().String("code", "admin", "Login code for the admin account")
	bootstrapAdminCmd.Flags().String("name", "Administrator", "Full name for the admin account")
}

func readAdminPassword() (string, error) {
	if pw := os.Getenv("ROLLCALL_ADMIN_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Print("Admin password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(raw), nil
}

func runBootstrapAdmin(cmd *cobra.Command, args []string) error {
	password, err := readAdminPassword()
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	code := mustGetString(cmd, "code")
	admin := &database.Person{
		ID:           uuid.New().String(),
		Code:         code,
		FullName:     mustGetString(cmd, "name"),
		Role:         database.RoleAdmin,
		PasswordHash: string(hash),
	}

	if err := eng.persons.Create(context.Background(), admin); err != nil {
		if errors.Is(err, database.ErrDuplicateCode) {
			return fmt.Errorf("a person with code %q already exists", code)
		}
		return err
	}

	fmt.Printf("Admin account %q created\n", code)
	return nil
}
