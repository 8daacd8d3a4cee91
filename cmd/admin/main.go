package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aiRoomDesigner/internal/config"
	"aiRoomDesigner/internal/logging"
	"aiRoomDesigner/internal/storage"
)

var (
	configPath string
	roomsLimit int
	openStore  = func(ctx context.Context) (storage.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database_url is required to manage accounts")
		}
		return storage.NewStore(ctx, cfg.DatabaseURL)
	}
)

func main() {
	logging.Init("warn", "console")
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("admin command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Manage room redesign accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to config file")

	credits := &cobra.Command{Use: "credits", Short: "Inspect and grant redesign credits"}
	credits.AddCommand(&cobra.Command{
		Use:   "show [email]",
		Short: "Show a user's credit balance",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(runCreditsShow),
	})
	credits.AddCommand(&cobra.Command{
		Use:   "grant [email] [amount]",
		Short: "Add credits to a user",
		Args:  cobra.ExactArgs(2),
		RunE:  withStore(runCreditsGrant),
	})

	rooms := &cobra.Command{Use: "rooms", Short: "Browse redesign history"}
	list := &cobra.Command{
		Use:   "list [email]",
		Short: "List a user's redesigns, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(runRoomsList),
	}
	list.Flags().IntVarP(&roomsLimit, "limit", "n", 20, "Maximum rows to print")
	rooms.AddCommand(list)

	guests := &cobra.Command{Use: "guests", Short: "Maintain ephemeral guest redesigns"}
	guests.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired guest redesigns",
		Args:  cobra.NoArgs,
		RunE:  withStore(runGuestsPurge),
	})

	root.AddCommand(credits, rooms, guests)
	return root
}

type storeCommand func(cmd *cobra.Command, store storage.Store, args []string) error

func withStore(run storeCommand) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		return run(cmd, store, args)
	}
}

func runCreditsShow(cmd *cobra.Command, store storage.Store, args []string) error {
	user, err := store.GetUserByEmail(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d): %d credits\n", user.Email, user.ID, user.Credits)
	return nil
}

func runCreditsGrant(cmd *cobra.Command, store storage.Store, args []string) error {
	amount, err := strconv.Atoi(args[1])
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %q", args[1])
	}
	balance, err := store.AddCredits(cmd.Context(), args[0], amount)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d credits\n", args[0], balance)
	return nil
}

func runRoomsList(cmd *cobra.Command, store storage.Store, args []string) error {
	rooms, err := store.ListGeneratedRooms(cmd.Context(), args[0], roomsLimit)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	printRooms(cmd.OutOrStdout(), rooms)
	return nil
}

func printRooms(out io.Writer, rooms []storage.GeneratedRoom) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tROOM\tSTYLE\tANALYSIS\tIMAGE")
	for _, r := range rooms {
		analysis := "no"
		if r.Analysis != nil {
			analysis = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Format(time.DateTime), r.RoomType, r.DesignType, analysis, r.AIImage)
	}
	_ = tw.Flush()
}

func runGuestsPurge(cmd *cobra.Command, store storage.Store, _ []string) error {
	purged, err := store.PurgeExpiredGuestRooms(cmd.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("purge guest rooms: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired guest redesigns\n", purged)
	return nil
}
