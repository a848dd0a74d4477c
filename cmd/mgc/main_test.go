package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/tensor"
)

const fiveNodes = `{"x": [[1],[2],[4],[1],[1]], "edges": [[0,1],[0,2],[1,2],[2,1],[2,3],[3,4],[4,1]]}`

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompile(t *testing.T) {
	out, _, err := execute(t, "", "compile", "a ; |> or", "mu X,b . ((a || X) ; or)")
	require.NoError(t, err)
	assert.Contains(t, out, "formula: a ; |> or")
	assert.Contains(t, out, "mode: xa")
	assert.Equal(t, 2, strings.Count(out, "<- output"))
}

func TestCompileError(t *testing.T) {
	_, _, err := execute(t, "", "compile", "a ;")
	assert.Error(t, err)

	_, _, err = execute(t, "", "compile")
	assert.Error(t, err)
}

func TestEval(t *testing.T) {
	graphs := writeFile(t, "g.json", fiveNodes)
	out, _, err := execute(t, "", "eval", "--graphs", graphs, "a ; |> or")
	require.NoError(t, err)

	var res struct {
		DType  string   `json:"dtype"`
		Labels [][]bool `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "bool", res.DType)
	assert.Equal(t, [][]bool{{false}, {true}, {true}, {false}, {true}}, res.Labels)
}

func TestEvalFixpointFromStdin(t *testing.T) {
	out, _, err := execute(t, fiveNodes, "eval", "--graphs", "-", "nu X,b . (X ; |> or)")
	require.NoError(t, err)
	var res struct {
		Labels [][]bool `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, [][]bool{{false}, {true}, {true}, {true}, {true}}, res.Labels)
}

func TestEvalProtoRepeat(t *testing.T) {
	graphs := writeFile(t, "g.json", fiveNodes)
	out, errOut, err := execute(t, "", "eval", "--graphs", graphs, "--format", "proto", "--repeat", "3", "a ; <| uor")
	require.NoError(t, err)
	assert.Contains(t, errOut, "evaluated 3 times")

	labels, err := tensor.UnmarshalProto([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, true, false}, labels.Bools(0))
}

func TestEvalFlags(t *testing.T) {
	graphs := writeFile(t, "g.json", fiveNodes)
	_, _, err := execute(t, "", "eval", "--graphs", graphs, "--format", "xml", "a")
	assert.Error(t, err)
	_, _, err = execute(t, "", "eval", "a")
	assert.Error(t, err)
	_, _, err = execute(t, "", "eval", "--graphs", filepath.Join(t.TempDir(), "missing.json"), "a")
	assert.Error(t, err)
}

func TestEvalWithConfig(t *testing.T) {
	cfg := writeFile(t, "mgc.hcl", `
batched = true

node {
  dtype = "uint8"
}

edge {
  dtype = "uint8"
}

psi "first" { use = "bit[0]" }
phi "zero" { use = "z" }
`)
	edges := `{"x": [[1],[2],[4],[1],[1]], "edges": [[0,1],[0,2],[1,2],[2,1],[2,3],[3,4],[4,1]], "e": [[1],[0],[0],[0],[1],[1],[1]]}`
	graphs := writeFile(t, "g.json", "["+edges+","+edges+"]")
	out, _, err := execute(t, "", "eval", "--config", cfg, "--graphs", graphs, "first ; <zero| uor")
	require.NoError(t, err)

	var res struct {
		Labels [][]bool `json:"labels"`
		Index  []int    `json:"index"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	want := [][]bool{{true}, {false}, {false}, {false}, {false}}
	assert.Equal(t, append(want, want...), res.Labels)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, res.Index)
}

func TestLogLevel(t *testing.T) {
	_, _, err := execute(t, "", "--log-level", "loud", "compile", "a")
	assert.Error(t, err)
	_, _, err = execute(t, "", "--log-level", "error", "compile", "a")
	assert.NoError(t, err)
}

func TestServeMux(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	flags := globalFlags{logLevel: "error"}
	e, err := flags.load()
	require.NoError(t, err)
	mux, unsubscribe, err := newMux(e, serveFlags{})
	require.NoError(t, err)
	defer unsubscribe()

	req := httptest.NewRequest("POST", "/compile", strings.NewReader(`{"formula": "a ; |> or"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mgc_compiler_compiles_total{mode="xa",result="success"} 1`)
	assert.Contains(t, w.Body.String(), `mgc_http_requests_total{route="/compile",status="200"} 1`)
}
