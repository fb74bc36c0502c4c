// chaintest runs YAML state-transition scenarios against the beacon
// state transition.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/meridianchain/meridian/cmd/chaintest/backend"
)

func main() {
	formatter := new(prefixed.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)

	app := &cli.App{
		Name:  "chaintest",
		Usage: "runs YAML state transition scenarios against the beacon chain core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tests-dir",
				Usage:    "path to a directory of YAML scenario manifests",
				Required: true,
			},
		},
		Action: runTests,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runTests(c *cli.Context) error {
	tests, err := loadTests(c.String("tests-dir"))
	if err != nil {
		return err
	}

	began := time.Now()
	total := 0
	for _, test := range tests {
		log.WithFields(log.Fields{
			"title": test.Title,
			"suite": test.TestSuite,
		}).Info("Running scenario suite")
		for i, testCase := range test.TestCases {
			sb := backend.NewSimulatedBackend()
			if err := sb.RunStateTransitionTest(testCase); err != nil {
				return errors.Wrapf(err, "case %d of %q failed", i, test.Title)
			}
			if err := sb.Shutdown(); err != nil {
				return errors.Wrap(err, "could not shut down backend")
			}
			total++
		}
	}
	log.WithFields(log.Fields{
		"cases":   total,
		"elapsed": time.Since(began),
	}).Info("All scenarios passed")
	return nil
}

func loadTests(dir string) ([]*backend.StateTest, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "could not read tests directory")
	}

	var tests []*backend.StateTest
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := ioutil.ReadFile(path.Join(dir, file.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %s", file.Name())
		}
		decoded := &backend.StateTest{}
		if err := yaml.Unmarshal(data, decoded); err != nil {
			return nil, errors.Wrapf(err, "could not decode %s", file.Name())
		}
		tests = append(tests, decoded)
	}
	if len(tests) == 0 {
		return nil, fmt.Errorf("no scenario manifests found in %s", dir)
	}
	return tests, nil
}
