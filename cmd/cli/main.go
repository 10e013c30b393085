package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-callback-links/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-callback-links/pkg/config"
	"github.com/wadjakorntonsri/go-callback-links/pkg/core/token"
	"github.com/wadjakorntonsri/go-callback-links/pkg/logger"
	"github.com/wadjakorntonsri/go-callback-links/pkg/ports"
)

const usage = "expected 'issue', 'verify' or 'purge' subcommands"

func main() {
	issueCmd := flag.NewFlagSet("issue", flag.ExitOnError)
	issueCallback := issueCmd.String("callback", "", "callback URL notified after the delay")
	issueRedirect := issueCmd.String("redirect", "", "destination URL")
	issueSeconds := issueCmd.Int("seconds", 5, "notification delay in seconds (1-3600)")
	issueState := issueCmd.String("state", "", "visitor state appended to the link")
	issueBase := issueCmd.String("base", "", "public base URL, defaults to PUBLIC_BASE_URL")

	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	verifyToken := verifyCmd.String("token", "", "token to decode")
	purgeCmd := flag.NewFlagSet("purge", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	logger.Setup(cfg.LogLevel, true)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	codec, err := token.NewCodec([]byte(cfg.TokenSecret), cfg.TokenAlgorithm)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}

	switch os.Args[1] {
	case "issue":
		issueCmd.Parse(os.Args[2:])
		if *issueCallback == "" || *issueRedirect == "" {
			issueCmd.PrintDefaults()
			os.Exit(1)
		}
		base := *issueBase
		if base == "" {
			base = cfg.PublicBaseURL
		}
		doIssue(codec, base, *issueCallback, *issueRedirect, *issueSeconds, *issueState)
	case "verify":
		verifyCmd.Parse(os.Args[2:])
		if *verifyToken == "" {
			verifyCmd.PrintDefaults()
			os.Exit(1)
		}
		doVerify(codec, *verifyToken)
	case "purge":
		purgeCmd.Parse(os.Args[2:])
		doPurge(cfg)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func doIssue(codec ports.TokenCodec, base, callback, redirect string, seconds int, state string) {
	tok, err := codec.Issue(callback, redirect, seconds)
	if err != nil {
		log.Fatal().Err(err).Msg("issue failed")
	}
	if base == "" {
		fmt.Println(tok)
		return
	}
	fmt.Printf("%s/redirect/%s?state=%s\n", base, tok, url.QueryEscape(state))
}

func doVerify(codec ports.TokenCodec, tok string) {
	payload, err := codec.Verify(tok)
	if err != nil {
		log.Fatal().Err(err).Msg("verify failed")
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		log.Fatal().Err(err).Msg("encode failed")
	}
}

func doPurge(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := repository.NewVisitStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open dedup store")
	}
	defer store.Close()

	purger, ok := store.(ports.VisitPurger)
	if !ok {
		log.Fatal().Str("backend", cfg.DedupBackend).Msg("backend expires records on its own, nothing to purge")
	}
	n, err := purger.PurgeExpired(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("purge failed")
	}
	log.Info().Int64("removed", n).Msg("purged expired visit records")
}
