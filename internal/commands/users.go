package commands

import (
	"time"

	"github.com/Skarath13/cards/internal/clock"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/repository"
	"github.com/Skarath13/cards/internal/service"
	"github.com/Skarath13/cards/internal/session"

	"github.com/spf13/cobra"
)

var seedUser struct {
	name string
	pin  string
	role string
}

func authService(e *env) service.AuthService {
	// sessions are never started from the CLI
	sessions := session.NewManager(session.NewMemoryStorage(), clock.Real{}, time.Minute)
	return service.NewAuthService(repository.NewUserRepository(e.db), sessions, e.cfg)
}

var seedUserCmd = &cobra.Command{
	Use:   "seed-user",
	Short: "Create a user who unlocks devices with a PIN",
	Example: `  cardsctl seed-user --name "Alice" --pin 2468
  cardsctl seed-user --name "Owner" --pin 9001 --role admin`,
	Args: cobra.NoArgs,
	RunE: withDB(func(cmd *cobra.Command, _ []string, e *env) error {
		u, err := authService(e).CreateUser(cmd.Context(), dto.CreateUserRequest{
			Name: seedUser.name,
			PIN:  seedUser.pin,
			Role: seedUser.role,
		})
		if err != nil {
			return err
		}
		cmd.Printf("Created %s (%s) id=%s\n", u.Name, u.Role, u.ID)
		return nil
	}),
}

var listUsersCmd = &cobra.Command{
	Use:   "list-users",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: withDB(func(cmd *cobra.Command, _ []string, e *env) error {
		users, err := authService(e).ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			cmd.Printf("%s  %-11s %s\n", u.ID, u.Role, u.Name)
		}
		return nil
	}),
}

func init() {
	seedUserCmd.Flags().StringVar(&seedUser.name, "name", "", "display name")
	seedUserCmd.Flags().StringVar(&seedUser.pin, "pin", "", "numeric PIN, 4 to 8 digits")
	seedUserCmd.Flags().StringVar(&seedUser.role, "role", service.RoleTechnician, "admin | manager | technician")
	_ = seedUserCmd.MarkFlagRequired("name")
	_ = seedUserCmd.MarkFlagRequired("pin")
}
