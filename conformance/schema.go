package conformance

// TestSuite is one yaml file of scenarios.
type TestSuite struct {
	Suite string     `yaml:"suite"`
	Tests []TestCase `yaml:"tests"`
}

// TestCase is a single scenario: source to evaluate and either the
// literal form of the expected value or an expected error code.
type TestCase struct {
	Name   string `yaml:"name"`
	Eval   string `yaml:"eval"`
	Expect string `yaml:"expect"`
	Error  string `yaml:"error"`
}
