package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nvr-ai/go-ppg/benchmark"
	"github.com/nvr-ai/go-ppg/config"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to a YAML service configuration (pipeline and roi sections are used)")
		scenarioFile  = flag.String("scenarios", "", "Path to a JSON scenario set")
		outputDir     = flag.String("output", "./benchmark_results", "Output directory for results")
		quick         = flag.Bool("quick", false, "Run quick benchmark scenarios")
		comprehensive = flag.Bool("comprehensive", false, "Run comprehensive benchmark scenarios")
		noise         = flag.Bool("noise", false, "Run the noise sweep")
		tolerance     = flag.Int("tolerance", 2, "Allowed BPM error for a converged scenario")
		timeout       = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	suite := benchmark.NewSuite(cfg.Pipeline, cfg.ROI, *outputDir)

	switch {
	case *scenarioFile != "":
		set, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenarios: %v", err)
		}
		suite.AddScenarioSet(set)
	case *comprehensive:
		suite.AddScenarioSet(benchmark.ComprehensiveScenarios())
	case *noise:
		suite.AddScenarioSet(benchmark.NoiseScenarios())
	case *quick:
		suite.AddScenarioSet(benchmark.QuickScenarios())
	default:
		suite.AddScenarioSet(benchmark.QuickScenarios())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("🚀 Running benchmarks (threshold %.2f, %dx%d ROI)\n",
		cfg.Pipeline.Beat.Threshold, cfg.ROI.Width, cfg.ROI.Height)
	if _, err := suite.Run(ctx); err != nil {
		log.Printf("Benchmark stopped: %v", err)
	}

	suite.PrintReport(*tolerance)
	path, err := suite.SaveResults()
	if err != nil {
		log.Fatalf("Failed to save results: %v", err)
	}
	fmt.Printf("💾 Results saved to %s\n", path)
}
