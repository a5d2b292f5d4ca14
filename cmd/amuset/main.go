// Command amuset fits an AMUSEt-TICA model from CSV trajectories
// listed in a yaml config, prints the implied timescales, and
// optionally writes the model snapshot. It is a thin wrapper; all the
// work happens in the library packages.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/seechin/amuset/amuset"
	"github.com/seechin/amuset/basis"
)

type config struct {
	Trajectories []string `yaml:"trajectories"`
	BasisCounts  []int    `yaml:"basis_counts"`
	Sigma        float64  `yaml:"sigma"`
	Seed         int64    `yaml:"seed"`
	Mix          bool     `yaml:"mix"`
	LagTime      int      `yaml:"lag_time"`
	MaxRank      int      `yaml:"max_rank"`
	Output       string   `yaml:"output"`
}

func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{Mix: true}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadTrajectory(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty trajectory", path)
	}
	out := mat.NewDense(len(records), len(records[0]), nil)
	for i, record := range records {
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d col %d: %w", path, i+1, j+1, err)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

func run(cfgPath string, log *zap.Logger) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	trajs := make([]*mat.Dense, len(cfg.Trajectories))
	for i, path := range cfg.Trajectories {
		if trajs[i], err = loadTrajectory(path); err != nil {
			return err
		}
	}
	log.Info("trajectories loaded", zap.Int("count", len(trajs)))

	list, err := basis.Find(trajs, cfg.BasisCounts, cfg.Sigma, cfg.Seed, cfg.Mix)
	if err != nil {
		return err
	}
	model := amuset.New(
		amuset.WithMaxRank(cfg.MaxRank),
		amuset.WithLogger(log),
	)
	if err := model.Fit(list, trajs, cfg.LagTime); err != nil {
		return err
	}
	log.Info("model fitted",
		zap.Int("rank", model.Rank()),
		zap.Int("lag_time", model.LagTime()))

	for i, ts := range model.Timescales() {
		fmt.Printf("timescale %d: %.6g\n", i+1, ts)
	}
	if cfg.Output != "" {
		if err := model.SaveFile(cfg.Output); err != nil {
			return err
		}
		log.Info("snapshot written", zap.String("path", cfg.Output))
	}
	return nil
}

func main() {
	cfgPath := flag.String("config", "amuset.yaml", "path to the yaml config")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*cfgPath, log); err != nil {
		log.Error("fit failed", zap.Error(err))
		os.Exit(1)
	}
}
