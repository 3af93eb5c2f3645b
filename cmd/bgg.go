package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/bgg"
	"github.com/nraw/gamescanner/pkg/storage"
	"github.com/spf13/cobra"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <bgg id or name>",
	Short: "Log a play on BoardGameGeek",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		quantity, _ := cmd.Flags().GetInt("quantity")
		length, _ := cmd.Flags().GetInt("length")
		comments, _ := cmd.Flags().GetString("comments")
		location, _ := cmd.Flags().GetString("location")

		resolver, err := newResolver()
		if err != nil {
			return err
		}
		id, err := gameID(cmd.Context(), resolver, strings.Join(args, " "))
		if err != nil {
			return err
		}

		client, err := newBGGClient()
		if err != nil {
			return err
		}
		res, err := client.LogPlay(cmd.Context(), bgg.PlayRequest{
			GameID:   id,
			PlayDate: date,
			Quantity: quantity,
			Length:   length,
			Comments: comments,
			Location: location,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Logged! You've now played it %d times: %s\n", res.NumPlays, res.URL)

		db, err := openDB()
		if err != nil {
			utils.Log.Warnf("Play logged on BGG but could not open the local database: %v", err)
			return nil
		}
		defer db.Close()

		return withDBLock(cmd.Context(), func() error {
			_, err := db.RecordPlay(cmd.Context(), storage.Play{
				GameID:    id,
				PlayDate:  res.PlayDate,
				Quantity:  quantity,
				Length:    length,
				Comments:  comments,
				Location:  location,
				BGGPlayID: res.PlayID,
				NumPlays:  res.NumPlays,
				PlayURL:   res.URL,
			})
			if err != nil {
				utils.Log.Warnf("Play logged on BGG but not recorded locally: %v", err)
			}
			return nil
		})
	},
}

// wishlistCmd represents the wishlist command
var wishlistCmd = &cobra.Command{
	Use:   "wishlist <bgg id or name>",
	Short: "Add a game to your BoardGameGeek wishlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")

		resolver, err := newResolver()
		if err != nil {
			return err
		}
		id, err := gameID(cmd.Context(), resolver, strings.Join(args, " "))
		if err != nil {
			return err
		}

		client, err := newBGGClient()
		if err != nil {
			return err
		}
		if err := client.AddWishlist(cmd.Context(), id, priority); err != nil {
			return err
		}
		fmt.Printf("Added %s to your wishlist\n", client.GameURL(id))
		return nil
	},
}

// gamesCmd represents the games command
var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List the games you own, optionally only those that play with a given number of players",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		players, _ := cmd.Flags().GetInt("players")

		client, err := newBGGClient()
		if err != nil {
			return err
		}
		games, err := client.OwnedGames(cmd.Context(), username, players)
		if err != nil {
			return err
		}
		if len(games) == 0 {
			fmt.Println("No games found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		if players > 0 {
			fmt.Fprintln(w, "BGG ID\tNAME\tPLAYERS\t")
			for _, g := range games {
				fmt.Fprintf(w, "%s\t%s\t%d-%d\t\n", g.BGGID, g.Name, g.MinPlayers, g.MaxPlayers)
			}
		} else {
			fmt.Fprintln(w, "BGG ID\tNAME\t")
			for _, g := range games {
				fmt.Fprintf(w, "%s\t%s\t\n", g.BGGID, g.Name)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(wishlistCmd)
	rootCmd.AddCommand(gamesCmd)

	playCmd.Flags().String("date", "", "Play date as YYYY-MM-DD (default today)")
	playCmd.Flags().IntP("quantity", "q", 1, "Number of plays")
	playCmd.Flags().Int("length", 0, "Play length in minutes")
	playCmd.Flags().StringP("comments", "c", "", "Play comments")
	playCmd.Flags().String("location", "", "Where the game was played")

	wishlistCmd.Flags().IntP("priority", "p", 3, "Wishlist priority, 1 (must have) to 5 (don't buy)")

	gamesCmd.Flags().StringP("username", "u", "", "BGG user whose collection to list (default bgg.username)")
	gamesCmd.Flags().IntP("players", "n", 0, "Only games supporting this many players")
}
