package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"
	"time"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/storage"
	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the gamescanner database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := dbFilePath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			utils.Log.Warnf("couldn't retrieve schema: %v", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the mappings and plays in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if stats.Mappings == 0 && stats.Plays == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "QUERIES\tGAMES\tMAPPINGS\tAUTO\tMANUAL\tPLAYS\t")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t\n", stats.Queries, stats.Games, stats.Mappings, stats.AutoMappings, stats.ManualMappings, stats.Plays)
		return w.Flush()
	},
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Show every id recorded for a query, newest first (all queries when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		db, err := openExistingDB()
		if err != nil {
			return err
		}
		defer db.Close()

		mappings, err := db.ListMappings(cmd.Context(), query, limit)
		if err != nil {
			return err
		}
		if len(mappings) == 0 {
			fmt.Println("No mappings found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ADDED\tQUERY\tBGG ID\tSOURCE\t")
		for _, m := range mappings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", m.AddedAt.Local().Format(time.DateTime), m.Query, m.BGGID, source(m))
		}
		return w.Flush()
	},
}

// playsCmd represents the plays command
var playsCmd = &cobra.Command{
	Use:   "plays",
	Short: "List plays logged through gamescanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetString("since")
		games, _ := cmd.Flags().GetString("games")

		db, err := openExistingDB()
		if err != nil {
			return err
		}
		defer db.Close()

		plays, err := db.ListPlays(cmd.Context(), storage.PlayFilter{
			GameIDs: utils.SplitList(games),
			Since:   since,
			Limit:   limit,
		})
		if err != nil {
			return err
		}
		if len(plays) == 0 {
			fmt.Println("No plays found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DATE\tBGG ID\tQTY\tPLAYS\tURL\t")
		for _, p := range plays {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t\n", p.PlayDate, p.GameID, p.Quantity, p.NumPlays, p.PlayURL)
		}
		return w.Flush()
	},
}

func source(m storage.Mapping) string {
	if m.Auto {
		return "search"
	}
	return "manual"
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(historyCmd)
	dbCmd.AddCommand(playsCmd)

	historyCmd.Flags().Int("limit", 50, "Maximum number of records to show")
	playsCmd.Flags().Int("limit", 0, "Maximum number of plays to show (0 for all)")
	playsCmd.Flags().String("since", "", "Only plays on or after this date (YYYY-MM-DD)")
	playsCmd.Flags().String("games", "", "Comma separated BGG ids to filter on")
}
