package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cppla/bravesteps/app"
	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/seed"
	"github.com/cppla/bravesteps/storage"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if err := storage.Migrate(a.DB); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the protocol tasks and achievement catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(file)
			if err != nil {
				return err
			}
			return withApp(func(a *app.App) error {
				if err := storage.Migrate(a.DB); err != nil {
					return err
				}
				res, err := seed.Apply(a.DB, cat)
				if err != nil {
					return err
				}
				a.Catalog.Invalidate(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tasks and %d achievements\n", res.Tasks, res.Achievements)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "TOML catalog to load instead of the built-in one")
	return cmd
}

func loadCatalog(file string) (seed.Catalog, error) {
	if file == "" {
		return seed.Default()
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return seed.Catalog{}, err
	}
	return seed.Parse(b)
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage client and therapist accounts",
	}
	cmd.AddCommand(newUsersAddCmd(), newUsersListCmd())
	return cmd
}

func newUsersAddCmd() *cobra.Command {
	var spec storage.NewUser
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an account with a passcode",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("name is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Name = args[0]
			return withApp(func(a *app.App) error {
				u, err := storage.CreateUser(cmd.Context(), a.DB, spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s #%d (%s)\n", u.Name, u.ID, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&spec.Passcode, "passcode", "p", "", "login passcode (required)")
	cmd.Flags().StringVarP(&spec.Role, "role", "r", models.RoleClient, "client|admin")
	cmd.Flags().StringVar(&spec.Email, "email", "", "address for mail reminders")
	cmd.Flags().StringVar(&spec.TimeZone, "timezone", "", "IANA zone, empty uses the app default")
	_ = cmd.MarkFlagRequired("passcode")
	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				var users []models.User
				if err := a.DB.WithContext(cmd.Context()).Order("id ASC").Find(&users).Error; err != nil {
					return err
				}
				return printUsers(cmd.OutOrStdout(), users)
			})
		},
	}
}

func printUsers(w io.Writer, users []models.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tWEEK\tLEVEL\tXP\tSTREAK\tLAST DAY")
	for _, u := range users {
		last := "-"
		if u.LastCompletionDay != nil {
			last = *u.LastCompletionDay
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n", u.ID, u.Name, u.Role, u.CurrentWeek, u.CurrentLevel, u.TotalXP, u.CurrentStreak, last)
	}
	return tw.Flush()
}

func newExportCmd() *cobra.Command {
	var (
		userID uint
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a client's entries as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q", format)
			}
			return withApp(func(a *app.App) error {
				exp, err := storage.ClientExport(cmd.Context(), a.DB, userID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return writeExport(w, exp, format)
			})
		},
	}
	cmd.Flags().UintVarP(&userID, "user", "u", 0, "user id (required)")
	cmd.Flags().StringVar(&format, "format", "json", "json|csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func writeExport(w io.Writer, exp storage.Export, format string) error {
	if format == "csv" {
		return storage.WriteCSV(w, exp.Entries)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exp)
}

func newRemindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "Run one reminder sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				rep, err := a.Reminder.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked %d users, sent %d reminders, %d failed\n", rep.UsersChecked, rep.NotificationsSent, rep.Failures)
				return nil
			})
		},
	}
}
