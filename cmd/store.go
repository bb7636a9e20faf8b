package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/history"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

// openStore opens the history store named by --store or the config file.
func openStore(cmd *cobra.Command) (*history.Store, error) {
	path, _ := cmd.Flags().GetString("store")
	if path == "" {
		path = cfg.Store.Path
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// loadSuite resolves a suite among the uploaded ones first, then among the
// bundled and --suites-dir suites.
func loadSuite(cmd *cobra.Command, store *history.Store, id string) (*testsuite.TestSuite, error) {
	suite, err := store.Suite(id)
	if err == nil {
		return suite, nil
	}
	var notFound *history.SuiteNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	suitesDir, _ := cmd.Flags().GetString("suites-dir")
	suite, err = testsuite.Load(id, suitesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load test suite: %w", err)
	}
	return suite, nil
}
