package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "tok", "sec", 2*time.Second)
}

func TestFetchAllNames(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/sparte/ultimate", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		assert.Equal(t, "sec", r.URL.Query().Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"dfvNumber": 12, "firstName": " Anna ", "lastName": "Berg", "lastModified": "2024-03-01T10:00:00", "dse": true, "club": {"id": 7}},
			{"dfvNumber": 13, "firstName": null, "lastName": "Null", "lastModified": "2024-03-01T10:00:00Z", "dse": false}
		]`))
	})

	ids, err := client.FetchAllNames(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)

	assert.Equal(t, 12, ids[0].FederationNumber)
	assert.Equal(t, " Anna ", *ids[0].FirstName)
	assert.True(t, ids[0].Consent)
	assert.Equal(t, 7, ids[0].ClubID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ids[0].LastModified)

	assert.False(t, ids[1].WellFormed())
}

func TestFetchAllNamesKeepsBrokenEntries(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"dfvNumber": 12, "firstName": "Anna", "lastName": "Berg", "lastModified": "2024-03-01T10:00:00"},
			{"dfvNumber": 13, "firstName": "Ben", "lastName": "Kurz", "lastModified": null},
			{"dfvNumber": 14, "firstName": "Cleo", "lastName": "Maas", "lastModified": "gestern"},
			{"firstName": "Dora", "lastName": "Ost", "lastModified": "2024-03-01T10:00:00"}
		]`))
	})

	ids, err := client.FetchAllNames(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 4)

	assert.True(t, ids[0].WellFormed())
	for _, id := range ids[1:] {
		assert.False(t, id.WellFormed(), "entry %d", id.FederationNumber)
	}
	assert.Equal(t, 13, ids[1].FederationNumber)
	assert.True(t, ids[2].LastModified.IsZero())
	assert.Equal(t, 0, ids[3].FederationNumber)
}

func TestFetchAllNamesEmpty(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	ids, err := client.FetchAllNames(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestFetchProfile(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/profil/12":
			_, _ = w.Write([]byte(`{"dse": true, "paid": true, "active": true, "idle": false,
				"gender": "w", "dobString": "1990-05-17", "email": "anna@example.org"}`))
		case "/profil/13":
			w.WriteHeader(http.StatusNotFound)
		case "/profil/14":
			w.WriteHeader(http.StatusBadGateway)
		case "/profil/15":
			_, _ = w.Write([]byte(`{"dobString": "17.05.1990"}`))
		default:
			_, _ = w.Write([]byte(`{not json`))
		}
	})
	ctx := context.Background()

	p, err := client.FetchProfile(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, p.FederationNumber)
	assert.True(t, p.Consent)
	assert.True(t, p.Paid)
	assert.Equal(t, "w", p.Gender)
	require.NotNil(t, p.BirthDate)
	assert.Equal(t, 1990, p.BirthDate.Year())

	_, err = client.FetchProfile(ctx, 13)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.FetchProfile(ctx, 14)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = client.FetchProfile(ctx, 15)
	assert.ErrorIs(t, err, ErrBadData)

	_, err = client.FetchProfile(ctx, 16)
	assert.ErrorIs(t, err, ErrBadData)
}

func TestFetchProfileTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(srv.URL, "tok", "sec", 20*time.Millisecond)

	_, err := client.FetchProfile(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNotConfigured(t *testing.T) {
	client := NewHTTPClient("", "", "", time.Second)
	_, err := client.FetchAllNames(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.FetchProfile(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
