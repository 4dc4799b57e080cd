package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nlp4/internal/nlp4test"
	"github.com/robert-malhotra/go-nlp4/nlp4"
)

// reportFixture has two raw 8-bit frames; only the first carries FOV.
func reportFixture(t *testing.T) *report {
	t.Helper()
	f := nlp4test.Series(2, 2, 2)
	f.Frames[1].Compression = 0
	f.Frames[0].Fields = append(f.Frames[0].Fields, [2]string{"FOV", "10"})

	m, err := nlp4.OpenReader(context.Background(), bytes.NewReader(f.Bytes()))
	require.NoError(t, err)
	return newReport(m, "measurement.nlp", 0)
}

func TestInspectText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, reportFixture(t)))
	goldie.Assert(t, "TestInspectText", buf.Bytes())
}

func TestInspectJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, reportFixture(t), "json"))

	var got struct {
		Path       string          `json:"path"`
		Rows       int             `json:"rows"`
		Decoded    []int           `json:"decoded"`
		MaxCounts  float64         `json:"max_counts"`
		Attributes json.RawMessage `json:"attributes"`
		Frames     []struct {
			Fields map[string]string `json:"fields"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "measurement.nlp", got.Path)
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, []int{0, 1}, got.Decoded)
	assert.Equal(t, 4.0, got.MaxCounts)
	require.Len(t, got.Frames, 2)
	assert.Equal(t, map[string]string{"GUN_HV": "+15000.000000"}, got.Frames[0].Fields)

	// Attributes keep file order.
	attrs := string(got.Attributes)
	assert.Less(t, strings.Index(attrs, `"file_header"`), strings.Index(attrs, `"UPRISM_ST"`))
	assert.Less(t, strings.Index(attrs, `"UPRISM_ST"`), strings.Index(attrs, `"directory_position"`))
}

func TestInspectYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, reportFixture(t), "yaml"))

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	var got struct {
		State      string `yaml:"state"`
		Attributes struct {
			UPRISM float64 `yaml:"UPRISM_ST"`
			FOV    string  `yaml:"FOV"`
		} `yaml:"attributes"`
	}
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "fully loaded", got.State)
	assert.Equal(t, 0.01975, got.Attributes.UPRISM)
	assert.Equal(t, `{0: "10"}`, got.Attributes.FOV)

	// The attribute mapping lists keys in file order.
	root := doc.Content[0]
	var keys []string
	for i := 0; i < len(root.Content); i += 2 {
		if root.Content[i].Value != "attributes" {
			continue
		}
		attrs := root.Content[i+1]
		for j := 0; j < len(attrs.Content); j += 2 {
			keys = append(keys, attrs.Content[j].Value)
		}
	}
	require.NotEmpty(t, keys)
	assert.Equal(t, "path", keys[0])
	assert.Equal(t, "min_counts", keys[len(keys)-1])
}

func TestInspectDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, reportFixture(t), "dump"))
	assert.Contains(t, buf.String(), "measurement.nlp")
	assert.Contains(t, buf.String(), "GUN_HV")
}

func TestInspectUnknownFormat(t *testing.T) {
	assert.Error(t, writeReport(&bytes.Buffer{}, reportFixture(t), "xml"))
}

func TestReportFrameLimit(t *testing.T) {
	m, err := nlp4.OpenReader(context.Background(), bytes.NewReader(nlp4test.Series(5, 2, 2).Bytes()),
		nlp4.WithLoadPolicy(nlp4.LoadNone))
	require.NoError(t, err)

	r := newReport(m, "x.nlp", 2)
	assert.Len(t, r.Frames, 2)
	assert.Nil(t, r.MaxCounts)
	assert.Nil(t, r.Frames[0].Min)

	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, r))
	assert.Contains(t, buf.String(), "  ... 3 more\n")
	assert.NotContains(t, buf.String(), "Counts:")
}
