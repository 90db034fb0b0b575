package ensembl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varexplorer/domain/variant"
	"varexplorer/internal/errors"
)

type fakeEnsembl struct {
	mu       sync.Mutex
	requests []string
	headers  []http.Header
}

func (f *fakeEnsembl) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/overlap/region/human/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		assert.Equal(t, "variation", r.URL.Query().Get("feature"))
		if strings.HasSuffix(r.URL.Path, "/11:5227002-5229002") {
			w.Write([]byte(`[{"id":"rs334","var_class":"SNP","start":5227002,"end":5227002,"consequence_type":"missense_variant"}]`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"service down"}`))
	})
	mux.HandleFunc("/vep/human/id/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		id := strings.TrimPrefix(r.URL.Path, "/vep/human/id/")
		switch id {
		case "rs334":
			w.Write([]byte(vepRS334))
		case "rs_empty":
			w.Write([]byte(`[]`))
		case "rs_bad":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"No variant found with ID 'rs_bad'"}`))
		case "rs_garbage":
			w.Write([]byte(`not json`))
		default:
			w.Write([]byte(`[{"most_severe_consequence":"intron_variant"}]`))
		}
	})
	return mux
}

func (f *fakeEnsembl) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.URL.Path)
	f.headers = append(f.headers, r.Header.Clone())
}

func newTestClient(t *testing.T, server *httptest.Server, delay time.Duration) *Client {
	t.Helper()
	config := DefaultClientConfig()
	config.BaseURL = server.URL + "/"
	config.RequestDelay = delay
	client, err := NewClient(config, WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client
}

func TestRegionVariants(t *testing.T) {
	fake := &fakeEnsembl{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()
	client := newTestClient(t, server, 0)

	region := variant.Region{Chromosome: "11", Start: 5227002, End: 5229002}
	variants, err := client.RegionVariants(context.Background(), region)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, variant.RsID("rs334"), variants[0].RsID)

	require.Len(t, fake.headers, 1)
	assert.Equal(t, "application/json", fake.headers[0].Get("Content-Type"))
	assert.Equal(t, "application/json", fake.headers[0].Get("Accept"))
}

func TestRegionVariantsServiceError(t *testing.T) {
	fake := &fakeEnsembl{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()
	client := newTestClient(t, server, 0)

	_, err := client.RegionVariants(context.Background(), variant.Region{Chromosome: "1", Start: 1, End: 10})
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	assert.Contains(t, err.Error(), "service down")

	_, err = client.RegionVariants(context.Background(), variant.Region{Chromosome: "1", Start: 10, End: 1})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestAnnotateSkipsAndContinues(t *testing.T) {
	fake := &fakeEnsembl{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()
	client := newTestClient(t, server, time.Millisecond)

	var progress []int
	ids := []variant.RsID{"rs334", "rs_empty", "rs_bad", "rs_garbage", "rs999"}
	batch, err := client.Annotate(context.Background(), ids, func(done, total int, id variant.RsID) {
		assert.Equal(t, len(ids), total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	require.Len(t, batch.Annotations, 2)
	assert.Equal(t, variant.RsID("rs334"), batch.Annotations[0].RsID)
	assert.Equal(t, variant.RsID("rs999"), batch.Annotations[1].RsID)

	require.Len(t, batch.Skipped, 3)
	assert.Equal(t, variant.RsID("rs_empty"), batch.Skipped[0].RsID)
	assert.Equal(t, "no data found", batch.Skipped[0].Reason)
	assert.Contains(t, batch.Skipped[1].Reason, "No variant found")
	assert.Contains(t, batch.Skipped[2].Reason, "not valid JSON")

	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
	assert.Len(t, fake.requests, len(ids))
}

func TestAnnotatePacesRequests(t *testing.T) {
	fake := &fakeEnsembl{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()
	const delay = 100 * time.Millisecond
	client := newTestClient(t, server, delay)

	var lastProgress time.Time
	start := time.Now()
	batch, err := client.Annotate(context.Background(), []variant.RsID{"rs1", "rs2", "rs3"}, func(done, total int, _ variant.RsID) {
		if done == total {
			lastProgress = time.Now()
		}
	})
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Len(t, batch.Annotations, 3)

	// one pause between each pair of requests and none after the last
	assert.GreaterOrEqual(t, elapsed, 2*delay)
	assert.Less(t, elapsed, 3*delay)
	require.False(t, lastProgress.IsZero())
	assert.Less(t, time.Since(lastProgress), delay/2)
}

func TestAnnotateHonoursCancellation(t *testing.T) {
	fake := &fakeEnsembl{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()
	client := newTestClient(t, server, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var batch *variant.AnnotationBatch
	var err error
	go func() {
		defer close(done)
		batch, err = client.Annotate(ctx, []variant.RsID{"rs334", "rs999"}, func(done, total int, id variant.RsID) {
			cancel()
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Annotate did not return after cancellation")
	}
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	assert.Len(t, batch.Annotations, 1)
}

func TestAnnotateOneNotFound(t *testing.T) {
	fake := &fakeEnsembl{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()
	client := newTestClient(t, server, 0)

	_, err := client.AnnotateOne(context.Background(), "rs_bad")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = client.AnnotateOne(context.Background(), "  ")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestClientConfigValidate(t *testing.T) {
	config := DefaultClientConfig()
	require.NoError(t, config.Validate())

	config.Timeout = 0
	assert.Error(t, config.Validate())

	config = DefaultClientConfig()
	config.RequestDelay = -time.Second
	assert.Error(t, config.Validate())

	config = DefaultClientConfig()
	config.BaseURL = ""
	_, err := NewClient(config)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
