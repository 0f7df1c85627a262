package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadedTest pairs a test case with the file it came from.
type LoadedTest struct {
	File  string
	Suite TestSuite
	Test  TestCase
}

// LoadAllTests reads every yaml suite under testdata/.
func LoadAllTests() ([]LoadedTest, error) {
	var loaded []LoadedTest
	entries, err := os.ReadDir("testdata")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join("testdata", e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var suite TestSuite
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, tc := range suite.Tests {
			loaded = append(loaded, LoadedTest{File: e.Name(), Suite: suite, Test: tc})
		}
	}
	return loaded, nil
}
