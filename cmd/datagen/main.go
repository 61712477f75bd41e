package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanshika/quickpay/backend/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		clients         = flag.Int("clients", cfg.NumClients, "number of clients to generate")
		maxCards        = flag.Int("max-cards", cfg.MaxCardsPerClient, "maximum distinct cards per client")
		multiEntity     = flag.Float64("multi-entity-chance", cfg.MultiEntityChance, "probability a card is linked to more than one entity")
		sharedCard      = flag.Float64("shared-card-chance", cfg.SharedCardChance, "probability of reusing a card held by another client")
		malformed       = flag.Float64("malformed-chance", cfg.MalformedChance, "probability a payment profile has no billing details")
		conflictDefault = flag.Float64("conflicting-default-chance", cfg.ConflictingDefaultChance, "probability a client has two default cards")
		encoding        = flag.String("encoding", string(cfg.Encoding), "flag encoding: v1, v2 or mixed")
		entities        = flag.String("entities", strings.Join(cfg.Entities, ","), "comma separated entity codes")
		seed            = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir       = flag.String("output-dir", "fixtures", "directory to write client-<id>.json files")
		writeStdout     = flag.Bool("stdout", false, "write the dataset to stdout instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumClients:               *clients,
		MaxCardsPerClient:        *maxCards,
		MultiEntityChance:        clampProbability(*multiEntity),
		SharedCardChance:         clampProbability(*sharedCard),
		MalformedChance:          clampProbability(*malformed),
		ConflictingDefaultChance: clampProbability(*conflictDefault),
		Encoding:                 generator.Encoding(strings.ToLower(*encoding)),
		Entities:                 splitCodes(*entities),
		Seed:                     *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d clients into %s\n", len(dataset.Clients), *outputDir)
}

func splitCodes(csv string) []string {
	var codes []string
	for _, part := range strings.Split(csv, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
