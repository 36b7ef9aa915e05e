package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/config"
	"github.com/sells-group/bitegraph/internal/jsonl"
	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/pipeline"
)

const uberCSV = "Restaurant_Name,Request_Time_Local,Order_Status,Item_Name,Item_quantity,Customizations,Item_Price,Order_Price,Currency\n" +
	"Sample Restaurant,2026-01-05T18:30:00Z,Completed,Shroom Burger,1,Extra Mayo,11.50,13.50,USD\n" +
	"Sample Restaurant,2026-01-05T18:30:00Z,Completed,Paper Towels,1,,2.00,13.50,USD\n" +
	"Sample Restaurant,2026-01-06T19:00:00Z,Canceled,Fries,1,,3.00,3.00,USD\n"

// testConfig installs a memory-store config with the documented defaults.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Log = config.LogConfig{Level: "info", Format: "json"}
	c.Mapper = config.MapperConfig{MatchThreshold: 85, MinConfidence: 0.25, LowDefault: 0.2}
	c.Store = config.StoreConfig{Driver: "memory", Policy: "skip_unchanged", MaxConns: 2, MinConns: 1}
	c.Pipeline.Workers = 2
	c.Server = config.ServerConfig{Port: 8080, RateLimit: 100, Burst: 100, MaxBodyMB: 1}
	c.Fetch = config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1, RequestsPerSecond: 100, MaxMB: 4}

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// prepare gives cmd a background context and captures its output.
func prepare(t *testing.T, cmd *cobra.Command) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	t.Cleanup(func() {
		cmd.SetContext(context.TODO())
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	return &out
}

func setParseFlags(t *testing.T, source, out string) {
	t.Helper()
	parseSource, parseOut, parseUserID, parseEntry = source, out, "u1", ""
	t.Cleanup(func() { parseSource, parseOut, parseUserID, parseEntry = "", "", "", "" })
}

func setPipelineFlags(t *testing.T, source, outDir string) {
	t.Helper()
	pipelineSource, pipelineOutDir, pipelineUserID = source, outDir, "u1"
	t.Cleanup(func() { pipelineSource, pipelineOutDir, pipelineUserID = "", "", "" })
}

func TestParseCmd_WritesItems(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()
	in := writeFile(t, dir, "orders.csv", []byte(uberCSV))
	outPath := filepath.Join(dir, "out", "normalized.jsonl")
	setParseFlags(t, "uber_eats", outPath)
	out := prepare(t, parseCmd)

	require.NoError(t, parseCmd.RunE(parseCmd, []string{in}))
	assert.Contains(t, out.String(), "wrote 2 items")

	items, err := jsonl.ReadFile[model.PurchaseLineItem](outPath)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Shroom Burger", items[0].ItemNameRaw)
	assert.Equal(t, []string{"Extra Mayo"}, items[0].ModifiersRaw)
	assert.Equal(t, "u1", items[0].UserID)
	assert.Equal(t, in, items[0].RawRef)
}

func TestParseCmd_IncludeNonCompleted(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()
	in := writeFile(t, dir, "orders.csv", []byte(uberCSV))
	outPath := filepath.Join(dir, "all.jsonl")
	setParseFlags(t, "uber_eats", outPath)
	parseIncludeNonCompleted = true
	t.Cleanup(func() { parseIncludeNonCompleted = false })
	prepare(t, parseCmd)

	require.NoError(t, parseCmd.RunE(parseCmd, []string{in}))
	items, err := jsonl.ReadFile[model.PurchaseLineItem](outPath)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestParseCmd_ZIPExport(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("Uber Data/Eats/eats_order_details.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(uberCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	in := writeFile(t, dir, "uber_export.zip", buf.Bytes())
	outPath := filepath.Join(dir, "out.jsonl")
	setParseFlags(t, "uber_eats", outPath)
	prepare(t, parseCmd)

	require.NoError(t, parseCmd.RunE(parseCmd, []string{in}))
	items, err := jsonl.ReadFile[model.PurchaseLineItem](outPath)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestParseCmd_Errors(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()
	in := writeFile(t, dir, "orders.csv", []byte(uberCSV))
	prepare(t, parseCmd)

	setParseFlags(t, "doordash", filepath.Join(dir, "x.jsonl"))
	err := parseCmd.RunE(parseCmd, []string{in})
	require.Error(t, err)
	assert.True(t, adapter.IsUnknownSource(err))

	setParseFlags(t, "uber_eats", filepath.Join(dir, "x.jsonl"))
	err = parseCmd.RunE(parseCmd, []string{filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")

	bad := writeFile(t, dir, "empty.csv", []byte{})
	err = parseCmd.RunE(parseCmd, []string{bad})
	require.Error(t, err)
	assert.True(t, adapter.IsInvalidInput(err))
}

func TestClassifyAndMapCmds(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()
	in := writeFile(t, dir, "orders.csv", []byte(uberCSV))
	normalized := filepath.Join(dir, "normalized.jsonl")
	classified := filepath.Join(dir, "classified.jsonl")
	mapped := filepath.Join(dir, "mapped.jsonl")

	setParseFlags(t, "uber_eats", normalized)
	prepare(t, parseCmd)
	require.NoError(t, parseCmd.RunE(parseCmd, []string{in}))

	classifyOut = classified
	t.Cleanup(func() { classifyOut = "" })
	out := prepare(t, classifyCmd)
	require.NoError(t, classifyCmd.RunE(classifyCmd, []string{normalized}))
	assert.Contains(t, out.String(), "classified 2 items")

	f, err := os.Open(classified)
	require.NoError(t, err)
	recs, err := jsonl.ReadInterpreted(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.VerticalFood, recs[0].Classification.Vertical)
	assert.Equal(t, model.VerticalNonFood, recs[1].Classification.Vertical)
	assert.Nil(t, recs[0].Interpretation)

	mapOut, mapEnrich = mapped, true
	t.Cleanup(func() { mapOut, mapEnrich = "", false })
	out = prepare(t, mapCmd)
	require.NoError(t, mapCmd.RunE(mapCmd, []string{classified}))
	assert.Contains(t, out.String(), "mapped 2 items (1 matched)")

	records, err := jsonl.ReadFile[jsonl.Mapped](mapped)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Mapping.CanonicalFoodID)
	assert.Equal(t, "burger_mushroom_v1", *records[0].Mapping.CanonicalFoodID)
	assert.Nil(t, records[1].Mapping.CanonicalFoodID)
	assert.Nil(t, records[1].Enrichment)
}

func TestMapCmd_RejectsUnclassified(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()
	in := writeFile(t, dir, "items.jsonl", []byte(`{"item":{"event_id":"e1","source":"s","item_name_raw":"x"}}`+"\n"))
	mapOut = filepath.Join(dir, "out.jsonl")
	t.Cleanup(func() { mapOut = "" })
	prepare(t, mapCmd)

	err := mapCmd.RunE(mapCmd, []string{in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no classification")
}

func TestPipelineCmd_WritesStages(t *testing.T) {
	testConfig(t)
	dir := t.TempDir()
	in := writeFile(t, dir, "orders.csv", []byte(uberCSV))
	outDir := filepath.Join(dir, "stages")
	setPipelineFlags(t, "uber_eats", outDir)
	out := prepare(t, pipelineCmd)

	require.NoError(t, pipelineCmd.RunE(pipelineCmd, []string{in}))
	assert.Contains(t, out.String(), "processed 2 items: 1 matched, 2 new versions, 0 failed")

	for _, name := range []string{jsonl.NormalizedFile, jsonl.InterpretedFile, jsonl.MappedFile} {
		_, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
	}

	mapped, err := jsonl.ReadFile[jsonl.Mapped](filepath.Join(outDir, jsonl.MappedFile))
	require.NoError(t, err)
	require.Len(t, mapped, 2)
	require.NotNil(t, mapped[0].Interpretation)
	assert.Equal(t, 1, mapped[0].Interpretation.Version)
	assert.NotNil(t, mapped[0].Consumption)
}

func TestPipelineCmd_SQLiteHistory(t *testing.T) {
	c := testConfig(t)
	dir := t.TempDir()
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "bitegraph.db")

	in := writeFile(t, dir, "orders.csv", []byte(uberCSV))
	outDir := filepath.Join(dir, "stages")
	setPipelineFlags(t, "uber_eats", outDir)
	out := prepare(t, pipelineCmd)

	require.NoError(t, pipelineCmd.RunE(pipelineCmd, []string{in}))
	out.Reset()
	require.NoError(t, pipelineCmd.RunE(pipelineCmd, []string{in}))
	assert.Contains(t, out.String(), "0 new versions")

	items, err := jsonl.ReadFile[model.PurchaseLineItem](filepath.Join(outDir, jsonl.NormalizedFile))
	require.NoError(t, err)
	require.NotEmpty(t, items)

	hist := prepare(t, historyCmd)
	require.NoError(t, historyCmd.RunE(historyCmd, []string{items[0].EventID}))
	assert.Contains(t, hist.String(), "VERSION")
	assert.Contains(t, hist.String(), "burger_mushroom_v1")
	assert.Contains(t, hist.String(), "reasons (v1)")
}

func TestPipelineCmd_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Pipeline.Workers = 0
	setPipelineFlags(t, "uber_eats", t.TempDir())
	prepare(t, pipelineCmd)

	err := pipelineCmd.RunE(pipelineCmd, []string{"unused.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.workers")
}

func TestHistoryCmd_Empty(t *testing.T) {
	testConfig(t)
	out := prepare(t, historyCmd)

	require.NoError(t, historyCmd.RunE(historyCmd, []string{"missing"}))
	assert.Contains(t, out.String(), "No interpretations found for missing")
}

func TestFormatHistory(t *testing.T) {
	id := "burger_mushroom_v1"
	versions := []model.FoodEventInterpretation{
		{EventID: "e1", Vertical: model.VerticalFood, FoodKind: model.FoodKindPreparedMeal, CanonicalFoodID: &id,
			Confidence: 0.8, Provenance: model.ProvenanceTemplateV1, Version: 1,
			UpdatedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{EventID: "e1", Vertical: model.VerticalNonFood, Confidence: 0.1, Provenance: model.ProvenanceTemplateV1,
			Reasons: []string{"no_match"}, Version: 2, UpdatedAt: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	formatHistory(&buf, versions)

	output := buf.String()
	assert.Contains(t, output, "VERSION")
	assert.Contains(t, output, "burger_mushroom_v1")
	assert.Contains(t, output, "0.800")
	assert.Contains(t, output, "2026-01-06T00:00:00Z")
	assert.Contains(t, output, "non_food")
	assert.Contains(t, output, "reasons (v2): no_match")
}

func TestSourcesCmd(t *testing.T) {
	out := prepare(t, sourcesCmd)
	require.NoError(t, sourcesCmd.RunE(sourcesCmd, nil))

	output := out.String()
	assert.Contains(t, output, "ORDER")
	uber := bytes.Index(out.Bytes(), []byte("uber_eats"))
	csv := bytes.Index(out.Bytes(), []byte("csv_import"))
	xlsx := bytes.Index(out.Bytes(), []byte("xlsx_import"))
	require.True(t, uber > 0 && csv > 0 && xlsx > 0, output)
	assert.Less(t, uber, csv)
	assert.Less(t, csv, xlsx)
}

func TestSummarize(t *testing.T) {
	id := "x"
	s := summarize([]pipeline.Result{
		{Appended: true, Mapping: &model.MappingResult{CanonicalFoodID: &id}},
		{Mapping: &model.MappingResult{}},
		{Err: fmt.Errorf("boom")},
	})
	assert.Equal(t, runSummary{Items: 3, Appended: 1, Matched: 1, Failed: 1}, s)
}

func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRunServer_Lifecycle(t *testing.T) {
	testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := initPipeline(ctx, "serve", envOptions{})
	require.NoError(t, err)
	defer env.Close()

	port := getFreePort(t)
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           newServer(env),
		ReadHeaderTimeout: time.Second,
	}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec,noctx
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
