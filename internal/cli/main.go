// Package cli implements the boardsync command.
//
// # Command Line Usage
//
//	# Print a board
//	boardsync show --board 3 --user ana
//
//	# Follow a board, printing every notice until interrupted
//	boardsync watch --board 3 --user ana
//
//	# Move card 12 to the top of column 5
//	boardsync move 12 5 0 --board 3 --user ana
//
// # Environment Variables
//
// Flags take precedence over these variables:
//
//	BOARDSYNC_API_URL       - REST API root (default: http://localhost:8000/api)
//	BOARDSYNC_WS_URL        - push channel root (default: derived from the API URL)
//	BOARDSYNC_BOARD_ID      - board to open
//	BOARDSYNC_USERNAME      - name announced to other users
//	BOARDSYNC_CBOR          - send REST bodies as CBOR
//	BOARDSYNC_PERSIST_ORDER - keep reorders within a column on the server
//	BOARDSYNC_LAST_WINS     - let a new move supersede one still in flight
//	BOARDSYNC_MAX_RETRIES   - reconnect attempts before giving up (default: 0, unlimited)
//	BOARDSYNC_DEBUG         - log at debug level
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/kanbanlive/boardsync.go"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/optimistic"
	"github.com/kanbanlive/boardsync.go/pkg/session"
)

// Env is the configuration read from the environment.
type Env struct {
	APIURL       string `env:"BOARDSYNC_API_URL" envDefault:"http://localhost:8000/api"`
	WSURL        string `env:"BOARDSYNC_WS_URL"`
	BoardID      int64  `env:"BOARDSYNC_BOARD_ID"`
	Username     string `env:"BOARDSYNC_USERNAME"`
	CBOR         bool   `env:"BOARDSYNC_CBOR"`
	PersistOrder bool   `env:"BOARDSYNC_PERSIST_ORDER"`
	LastWins     bool   `env:"BOARDSYNC_LAST_WINS"`
	MaxRetries   int    `env:"BOARDSYNC_MAX_RETRIES"`
	Debug        bool   `env:"BOARDSYNC_DEBUG"`
}

// ParseEnv reads Env from environ, or from the process environment when
// environ is nil.
func ParseEnv(environ map[string]string) (Env, error) {
	var e Env
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Config builds the client configuration described by e.
func (e Env) Config(log logger.Logger) boardsync.Config {
	retryer := session.NewExponentialBackoffRetryer()
	retryer.MaxRetries = e.MaxRetries

	policy := optimistic.PolicySerialize
	if e.LastWins {
		policy = optimistic.PolicyLastWins
	}

	return boardsync.Config{
		APIURL:       e.APIURL,
		WSURL:        e.WSURL,
		BoardID:      models.BoardID(e.BoardID),
		Username:     e.Username,
		CBOR:         e.CBOR,
		Retryer:      retryer,
		PersistOrder: e.PersistOrder,
		MovePolicy:   policy,
		Logger:       log,
	}
}

// Main runs the command line in args. Output goes to stdout, and logs to
// stderr. environ replaces the process environment when not nil.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer, environ map[string]string) error {
	e, err := ParseEnv(environ)
	if err != nil {
		return err
	}

	root := newRootCommand(&e, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type app struct {
	env    *Env
	stderr io.Writer
	logger logger.Logger
}

func newRootCommand(e *Env, stderr io.Writer) *cobra.Command {
	a := &app{env: e, stderr: stderr}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}

	root := &cobra.Command{
		Use:           "boardsync",
		Short:         "Follow and edit a live kanban board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = logger.NewConsole(a.stderr, a.env.Debug)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.APIURL, "api-url", e.APIURL, "REST API root")
	flags.StringVar(&e.WSURL, "ws-url", e.WSURL, "push channel root (default: derived from --api-url)")
	flags.Int64Var(&e.BoardID, "board", e.BoardID, "board to open")
	flags.StringVarP(&e.Username, "user", "u", e.Username, "name announced to other users")
	flags.BoolVar(&e.CBOR, "cbor", e.CBOR, "send REST bodies as CBOR")
	flags.BoolVar(&e.PersistOrder, "persist-order", e.PersistOrder, "keep reorders within a column on the server")
	flags.BoolVar(&e.LastWins, "last-wins", e.LastWins, "let a new move supersede one still in flight")
	flags.IntVar(&e.MaxRetries, "max-retries", e.MaxRetries, "reconnect attempts before giving up (0 for unlimited)")
	flags.BoolVar(&e.Debug, "debug", e.Debug, "log at debug level")

	root.AddCommand(
		a.showCmd(),
		a.watchCmd(),
		a.moveCmd(),
		a.renameCmd(),
		a.addColumnCmd(),
		a.addCardCmd(),
		a.deleteCardCmd(),
	)
	return root
}

func (a *app) open(ctx context.Context) (*boardsync.Client, error) {
	return boardsync.Open(ctx, a.env.Config(a.logger))
}

// withClient opens the board, runs fn and closes the board again.
func (a *app) withClient(cmd *cobra.Command, fn func(*boardsync.Client) error) error {
	ctx := cmd.Context()
	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			a.logger.Debug("cli failed to close board", "error", err)
		}
	}()
	return fn(c)
}
