package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/job-comb/app/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func byAgent(agent string) interface{} {
	return mock.MatchedBy(func(req *http.Request) bool {
		return req.Header.Get("User-Agent") == agent
	})
}

const feedURL = "https://example.com/jobs.xml"

func TestFetcher_PrimaryTierSucceeds(t *testing.T) {
	client := &mockHTTPClient{}
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Header.Get("User-Agent") == "JobComb/test" &&
			req.Header.Get("Accept") == primaryAccept &&
			req.URL.String() == feedURL
	})).Return(response(200, "<rss/>"), nil).Once()

	fetcher := NewFetcher(client, &mockHTTPClient{}, nil, Options{UserAgent: "JobComb/test", Timeout: time.Second})

	data, err := fetcher.Run(context.Background(), feedURL, 0)
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(data))
	client.AssertExpectations(t)
}

func TestFetcher_FallsBackToAlternateHeaders(t *testing.T) {
	client := &mockHTTPClient{}
	client.On("Do", byAgent("JobComb/test")).Return(response(403, "forbidden"), nil).Once()
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Header.Get("User-Agent") == alternateAgent &&
			req.Header.Get("Accept-Language") == alternateLang
	})).Return(response(200, `{"jobs": []}`), nil).Once()

	fetcher := NewFetcher(client, &mockHTTPClient{}, nil, Options{UserAgent: "JobComb/test"})

	data, err := fetcher.Run(context.Background(), feedURL, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"jobs": []}`, string(data))
	client.AssertExpectations(t)
}

func TestFetcher_DirectTierAcceptsAny2xx(t *testing.T) {
	client := &mockHTTPClient{}
	client.On("Do", mock.Anything).Return(response(200, "   "), nil).Twice()

	direct := &mockHTTPClient{}
	direct.On("Do", mock.Anything).Return(response(203, "<rss/>"), nil).Once()

	fetcher := NewFetcher(client, direct, nil, Options{UserAgent: "JobComb/test"})

	data, err := fetcher.Run(context.Background(), feedURL, 0)
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(data))
	client.AssertExpectations(t)
	direct.AssertExpectations(t)
}

func TestFetcher_AllTiersFail(t *testing.T) {
	client := &mockHTTPClient{}
	client.On("Do", byAgent("JobComb/test")).Return(nil, errors.New("connection refused")).Once()
	client.On("Do", byAgent(alternateAgent)).Return(response(500, "oops"), nil).Once()

	direct := &mockHTTPClient{}
	direct.On("Do", mock.Anything).Return(response(404, "missing"), nil).Once()

	fetcher := NewFetcher(client, direct, nil, Options{UserAgent: "JobComb/test"})

	_, err := fetcher.Run(context.Background(), feedURL, 0)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Len(t, fetchErr.Attempts, 3)
	assert.Equal(t, TierPrimary, fetchErr.Attempts[0].Tier)
	assert.Equal(t, TierAlternate, fetchErr.Attempts[1].Tier)
	assert.Equal(t, TierDirect, fetchErr.Attempts[2].Tier)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetcher_CachesPayload(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<rss><channel></channel></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), nil, cache.NewMemoryCache(), Options{
		UserAgent: "JobComb/test",
		Timeout:   time.Second,
		CacheTTL:  time.Minute,
	})

	for i := 0; i < 3; i++ {
		data, err := fetcher.Run(context.Background(), server.URL, 0)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<rss>")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetcher_TimeoutPerAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), server.Client(), nil, Options{UserAgent: "JobComb/test"})

	start := time.Now()
	_, err := fetcher.Run(context.Background(), server.URL, 20*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
