package compiler

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type compileCase struct {
	Name   string   `yaml:"name"`
	Source string   `yaml:"source"`
	Ops    []string `yaml:"ops"`
	Error  string   `yaml:"error"`
}

func loadCases(t *testing.T, path string) []compileCase {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cases []compileCase
	require.NoError(t, yaml.Unmarshal(data, &cases))
	require.NotEmpty(t, cases)
	return cases
}

func TestCompileCases(t *testing.T) {
	for _, tc := range loadCases(t, "testdata/cases.yaml") {
		t.Run(tc.Name, func(t *testing.T) {
			m := newTestModule("Case", tc.Source, nil, testOptions())
			err := m.Compile()
			if tc.Error != "" {
				require.Error(t, err)
				assert.Equal(t, tc.Error, CodeOf(err).String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Ops, opNames(m.ByteCode()))
		})
	}
}
