// Command portalctl drives the portal session client from a terminal. The
// session is kept in the medium selected by SESSION_STORE, so consecutive
// invocations share it when that medium is redis or postgres.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-session/internal/client"
	"github.com/spec-kit/portal-session/internal/config"
	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/events"
	"github.com/spec-kit/portal-session/internal/observability"
	"github.com/spec-kit/portal-session/internal/persistence"
	"github.com/spec-kit/portal-session/internal/session"
	"github.com/spec-kit/portal-session/internal/worker"
)

const usage = `usage: portalctl [flags] <command> [args]

commands:
  login <user|admin> <loginId> <password>   sign in, dropping the other role
  login-concurrent <user|admin> <loginId> <password>
                                            sign in, keeping the other role
  logout                                    end the current role's session
  logout-all                                end both sessions
  whoami                                    print the current role and identity
  get <path>                                authenticated GET
  public <path>                             public GET
  post <path> <json>                        authenticated POST
  delete <path>                             authenticated DELETE

flags:
`

func main() {
	role := flag.String("role", "", "session to use for requests (user or admin); default is the current role")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	medium, closeMedium, err := openMedium(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open session medium", zap.String("driver", cfg.Session.Driver), zap.Error(err))
	}

	store := session.NewStore(medium, session.WithNamespace(cfg.Session.Namespace), session.WithLogger(logger))
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartSessionAudit(dispatcher, logger)

	opts := client.OptionsFromConfig(cfg)
	opts.Logger = logger
	opts.Metrics = observability.NewMetrics()
	opts.Events = dispatcher
	c := client.New(store, opts)

	code, err := run(ctx, c, domain.Role(*role), flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "portalctl:", err)
		if code == 0 {
			code = 1
		}
	}
	closeMedium()
	_ = logger.Sync()
	os.Exit(code)
}

func openMedium(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Medium, func(), error) {
	switch cfg.Session.Driver {
	case config.DriverRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger, true)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisMedium(rdb.Client), rdb.Close, nil
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return session.NewPostgresMedium(pg.PoolHandle()), pg.Close, nil
	default:
		logger.Warn("memory session store does not outlive this process")
		return session.NewMemoryMedium(), func() {}, nil
	}
}

func run(ctx context.Context, c *client.Client, role domain.Role, args []string) (int, error) {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "login", "login-concurrent":
		if len(args) != 3 {
			return 2, fmt.Errorf("%s needs <user|admin> <loginId> <password>", cmd)
		}
		target := domain.Role(args[0])
		if !target.Valid() {
			return 2, fmt.Errorf("unknown role %q", args[0])
		}
		creds := client.Credentials{LoginID: args[1], Password: args[2]}
		var (
			res *client.Result
			err error
		)
		if cmd == "login" {
			res, err = c.Login(ctx, target, creds)
		} else {
			res, err = c.LoginConcurrent(ctx, target, creds)
		}
		if err != nil {
			return 1, err
		}
		return report(res)

	case "logout":
		ended, err := c.Logout(ctx)
		if err != nil {
			return 1, err
		}
		if ended == domain.RoleNone {
			fmt.Println("no session")
			return 0, nil
		}
		fmt.Printf("signed out of %s\n", ended)
		return 0, nil

	case "logout-all":
		if err := c.LogoutAll(ctx); err != nil {
			return 1, err
		}
		fmt.Println("signed out")
		return 0, nil

	case "whoami":
		current, err := c.CurrentRole(ctx)
		if err != nil {
			return 1, err
		}
		if current == domain.RoleNone {
			fmt.Println("anonymous")
			return 0, nil
		}
		identity, _, err := c.Identity(ctx, current)
		if err != nil {
			return 1, err
		}
		return 0, printJSON(map[string]any{"role": current, "identity": identity})

	case "get", "public", "delete":
		if len(args) != 1 {
			return 2, fmt.Errorf("%s needs <path>", cmd)
		}
		req := client.Request{Method: http.MethodGet, Path: args[0], Role: role}
		if cmd == "delete" {
			req.Method = http.MethodDelete
		}
		var (
			res *client.Result
			err error
		)
		if cmd == "public" {
			res, err = c.PublicRequest(ctx, req)
		} else {
			res, err = c.AuthenticatedRequest(ctx, req)
		}
		if err != nil {
			return 1, err
		}
		return report(res)

	case "post":
		if len(args) != 2 {
			return 2, fmt.Errorf("post needs <path> <json>")
		}
		if !json.Valid([]byte(args[1])) {
			return 2, fmt.Errorf("body is not valid JSON")
		}
		res, err := c.AuthenticatedRequest(ctx, client.Request{
			Method: http.MethodPost,
			Path:   args[0],
			Body:   json.RawMessage(args[1]),
			Role:   role,
		})
		if err != nil {
			return 1, err
		}
		return report(res)

	default:
		return 2, fmt.Errorf("unknown command %q", cmd)
	}
}

// report prints a result. Failures print the directive the UI would act on.
func report(res *client.Result) (int, error) {
	if res.Success {
		if len(res.Data) == 0 {
			fmt.Printf("ok (%d)\n", res.Status)
			return 0, nil
		}
		return 0, printJSON(res.Data)
	}
	d := res.Directive
	out := map[string]any{
		"status":     res.Status,
		"code":       d.Code.String(),
		"kind":       d.Kind,
		"message":    d.UserMessage,
		"autoLogout": d.AutoLogout,
	}
	if d.RedirectTo != "" {
		out["redirectTo"] = d.RedirectTo
	}
	if err := printJSON(out); err != nil {
		return 1, err
	}
	return 1, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
