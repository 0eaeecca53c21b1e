package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

// tableInput is the input file of the table command.
type tableInput struct {
	Title              string `json:"title" yaml:"title"`
	exporter.TableData `yaml:",inline"`
}

// batchInput is the input file of the batch command. A bare list of items
// is accepted too.
type batchInput struct {
	Items   []exporter.BatchItem `json:"items" yaml:"items"`
	Options exporter.Options     `json:"options" yaml:"options"`
}

func (r *runner) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <file>",
		Short: "Export a single user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u community.User
			if err := decodeFile(args[0], &u); err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportUserProfile(ctx, u, opts)
			})
		},
	}
}

func (r *runner) communityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "community <file>",
		Short: "Export a list of profiles as one community document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var users []community.User
			if err := decodeFile(args[0], &users); err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportCommunityProfiles(ctx, users, opts)
			})
		},
	}
}

func (r *runner) tableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table <file>",
		Short: "Export a table of headers and rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in tableInput
			if err := decodeFile(args[0], &in); err != nil {
				return err
			}
			if in.Title == "" {
				in.Title = r.flags.title
			}
			if in.Title == "" {
				return errors.New("table needs a title in the file or --title")
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportDataTable(ctx, in.TableData, in.Title, opts)
			})
		},
	}
}

func (r *runner) customCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "custom <title> <file>",
		Short: "Wrap an HTML fragment in a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportCustomContent(ctx, args[0], string(content), opts)
			})
		},
	}
}

func (r *runner) elementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "element <page> <id> <title>",
		Short: "Export one element of an HTML page by id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open page: %w", err)
			}
			defer page.Close()

			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportElement(ctx, page, args[1], args[2], opts)
			})
		},
	}
}

func (r *runner) schoolLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "school-leaderboard <file>",
		Short: "Export a school's ranked members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in exporter.SchoolLeaderboardData
			if err := decodeFile(args[0], &in); err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportSchoolLeaderboard(ctx, in.SchoolName, in.Entries, opts)
			})
		},
	}
}

func (r *runner) schoolRankingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "school-rankings <file>",
		Short: "Export the ranked list of schools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rankings []community.SchoolRanking
			if err := decodeFile(args[0], &rankings); err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportSchoolRankings(ctx, rankings, opts)
			})
		},
	}
}

func (r *runner) schoolPositionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "school-position <file>",
		Short: "Export a user's standing within their school",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in exporter.SchoolPositionData
			if err := decodeFile(args[0], &in); err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				return e.ExportUserSchoolPosition(ctx, in.User, in.SchoolRanks, in.Leaderboard, opts)
			})
		},
	}
}

func (r *runner) batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file>",
		Short: "Export a list of items one after another",
		Long: `Export a list of items one after another. The file holds either a list
of items or an object with "items" and "options". Progress is printed
as [i/N] after each item.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := decodeBatch(args[0])
			if err != nil {
				return err
			}

			return r.run(cmd, func(ctx context.Context, e *exporter.Exporter, opts exporter.Options) error {
				opts = mergeOptions(opts, in.Options)
				result, err := e.Batch(ctx, in.Items, opts, func(current, total int) {
					fmt.Fprintf(r.cfg.Stdout, "[%d/%d]\n", current, total)
				})
				fmt.Fprintf(r.cfg.Stdout, "delivered %d, skipped %d, failed %d\n", result.Delivered, result.Skipped, result.Failed)
				return err
			})
		},
	}
}

func decodeBatch(path string) (batchInput, error) {
	var in batchInput
	if err := decodeFile(path, &in); err == nil {
		return in, nil
	}

	var items []exporter.BatchItem
	if err := decodeFile(path, &items); err != nil {
		return in, err
	}
	return batchInput{Items: items}, nil
}

// mergeOptions lets options from a batch file fill in what flags left at
// their defaults.
func mergeOptions(flagOpts, fileOpts exporter.Options) exporter.Options {
	if flagOpts.Title == "" {
		flagOpts.Title = fileOpts.Title
	}
	if fileOpts.Styles != "" {
		if flagOpts.Styles != "" {
			flagOpts.Styles += "\n"
		}
		flagOpts.Styles += fileOpts.Styles
	}
	if fileOpts.IncludeStyles != nil && !*fileOpts.IncludeStyles {
		flagOpts.IncludeStyles = exporter.Bool(false)
	}
	if fileOpts.Theme != "" && flagOpts.Theme == exporter.ThemeLight {
		flagOpts.Theme = exporter.ParseTheme(string(fileOpts.Theme))
	}
	return flagOpts
}
