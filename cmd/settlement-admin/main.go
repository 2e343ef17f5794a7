package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/radieske/sports-bet-settlement/internal/admin"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
)

const usage = `usage: settlement-admin <command> [flags]

commands:
  cleanup        força a aposentadoria de jogos parados (cancela e reembolsa)
  games          lista os jogos sem resultado
  bets -user ID  lista as apostas de um usuário
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	base := fs.String("url", cfg.BetAPIURL, "bet-api base URL")
	token := fs.String("token", cfg.AdminToken, "admin token (X-Admin-Token)")
	user := fs.String("user", "", "user id (bets)")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	_ = fs.Parse(os.Args[2:])

	c := admin.New(*base, *token)
	c.UserHeader = cfg.UserHeader

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch os.Args[1] {
	case "cleanup":
		out, err := c.CleanupOldGames(ctx)
		exitOn(err)
		admin.RenderCleanup(os.Stdout, out)
	case "games":
		games, err := c.Games(ctx)
		exitOn(err)
		admin.RenderGames(os.Stdout, games)
	case "bets":
		if *user == "" {
			fmt.Fprintln(os.Stderr, "bets: -user is required")
			os.Exit(2)
		}
		bets, err := c.Bets(ctx, *user)
		exitOn(err)
		admin.RenderBets(os.Stdout, bets)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
