package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/kanbanlive/boardsync.go"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/notice"
)

func (a *app) showCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(c *boardsync.Client) error {
				snap := c.Snapshot()
				printBoard(cmd.OutOrStdout(), snap)
				if !check {
					return nil
				}
				if err := snap.Board.Validate(); err != nil {
					return fmt.Errorf("board %d is inconsistent: %w", snap.Board.ID, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify card columns, orders and ids")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notices as the board changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			return a.withClient(cmd, func(c *boardsync.Client) error {
				// Notices are printed from the session goroutine.
				out := &lockedWriter{w: cmd.OutOrStdout()}
				printBoard(out, c.Snapshot())

				c.Notices().OnChange(func(n notice.Notice, status notice.Status) {
					if status == notice.Shown {
						fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
					}
				})

				select {
				case <-ctx.Done():
				case <-c.Done():
					if err := c.Err(); err != nil {
						return err
					}
				}

				printBoard(out, c.Snapshot())
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move CARD COLUMN [INDEX]",
		Short: "Move a card to a column, at the end unless INDEX is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID(args[0], "card")
			if err != nil {
				return err
			}
			columnID, err := parseID(args[1], "column")
			if err != nil {
				return err
			}
			index := -1
			if len(args) == 3 {
				if index, err = strconv.Atoi(args[2]); err != nil || index < 0 {
					return fmt.Errorf("invalid index %q", args[2])
				}
			}

			return a.withClient(cmd, func(c *boardsync.Client) error {
				board := c.Snapshot().Board
				source, ok := board.FindCard(models.CardID(cardID))
				if !ok {
					return fmt.Errorf("card %d is not on board %d", cardID, board.ID)
				}
				dest, ok := board.Column(models.ColumnID(columnID))
				if !ok {
					return fmt.Errorf("column %d is not on board %d", columnID, board.ID)
				}

				last := len(dest.Cards)
				if dest.ID == source.Column {
					last--
				}
				if index < 0 || index > last {
					index = last
				}

				err := c.Move(cmd.Context(), boardsync.MoveRequest{
					CardID:      models.CardID(cardID),
					Source:      boardsync.Location{Column: source.Column, Index: source.Index},
					Destination: &boardsync.Location{Column: dest.ID, Index: index},
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "moved card %d to %q at %d\n", cardID, dest.Title, index)
				return nil
			})
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename NAME",
		Short: "Rename the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(c *boardsync.Client) error {
				return c.RenameBoard(cmd.Context(), args[0])
			})
		},
	}
}

func (a *app) addColumnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-column TITLE",
		Short: "Append a column to the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(c *boardsync.Client) error {
				col, err := c.CreateColumn(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created column %d\n", col.ID)
				return nil
			})
		},
	}
}

func (a *app) addCardCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add-card COLUMN TITLE",
		Short: "Add a card at the end of a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			columnID, err := parseID(args[0], "column")
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(c *boardsync.Client) error {
				card, err := c.CreateCard(cmd.Context(), models.ColumnID(columnID), args[1], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created card %d\n", card.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "card description")
	return cmd
}

func (a *app) deleteCardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-card CARD",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID(args[0], "card")
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(c *boardsync.Client) error {
				return c.DeleteCard(cmd.Context(), models.CardID(cardID))
			})
		},
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func printBoard(w io.Writer, snap models.Snapshot) {
	b := snap.Board
	if b == nil {
		fmt.Fprintln(w, "(no board)")
		return
	}
	fmt.Fprintf(w, "%s (%s)\n", b.Name, b.Summary())
	for _, col := range b.Columns {
		fmt.Fprintf(w, "%s [#%d]\n", col.Title, col.ID)
		for _, card := range col.Cards {
			fmt.Fprintf(w, "  #%d %s\n", card.ID, card.Title)
		}
	}
	if users := snap.Presence.Users(); len(users) > 0 {
		fmt.Fprintf(w, "online: %v\n", users)
	}
}
