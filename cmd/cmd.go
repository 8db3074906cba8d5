// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/playvert/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the Playvert JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (defaults to server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml if missing, initialize the share-link store and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles user authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize with Spotify using OAuth2 and store the tokens in config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SpotifyAuth,
			},
		},
	}
}

// playlistCommand reads playlists from any platform
func playlistCommand(r *Runner) *cli.Command {
	formatFlags := append(outputFlags(),
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown or csv",
			Value:   formatter.FormatText,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file (a directory for markdown) instead of stdout",
		},
	)

	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Fetch a playlist and its tracks from a Spotify, Apple Music or Deezer URL",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags:     formatFlags,
				Action:    r.PlaylistGet,
			},
			{
				Name:      "tracks",
				Usage:     "List the tracks of a playlist URL",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags:     outputFlags(),
				Action:    r.PlaylistTracks,
			},
		},
	}
}

// searchCommand searches one platform's catalog
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search a platform catalog by ISRC, title and artist",
		Arguments: []cli.Argument{&cli.StringArg{Name: "platform"}},
		Flags: append(outputFlags(),
			&cli.StringFlag{Name: "isrc", Usage: "ISRC code"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Track title"},
			&cli.StringFlag{Name: "artist", Aliases: []string{"a"}, Usage: "Artist name"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of results to print", Value: 10},
		),
		Action: r.Search,
	}
}

// convertCommand converts a playlist URL to another platform
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Match a playlist's tracks on another platform and create it there",
		Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
		Flags: append(outputFlags(),
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Target platform: spotify, apple or deezer",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Name of the new playlist (defaults to the source title)",
			},
			&cli.BoolFlag{
				Name:  "share",
				Usage: "Also store the source playlist behind a share link",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress view",
			},
		),
		Action: r.Convert,
	}
}

// shareCommand reads and creates share links
func shareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Share-link operations",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Store a playlist URL's contents behind a 24 hour share link",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags:     outputFlags(),
				Action:    r.ShareCreate,
			},
			{
				Name:      "get",
				Usage:     "Print the playlist behind a share link",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.ShareGet,
			},
			{
				Name:   "purge",
				Usage:  "Delete expired share links",
				Action: r.SharePurge,
			},
		},
	}
}
