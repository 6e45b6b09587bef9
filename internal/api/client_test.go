package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"estatelist/internal/api"
	"estatelist/internal/api/apitest"
	"estatelist/internal/domain"
	applog "estatelist/internal/log"
)

func seed() []domain.Property {
	return []domain.Property{
		{ID: 1, Address: "Main St 1", Price: 100000, Size: 80, Description: "flat"},
		{ID: 2, Address: "Oak Ave 5", Price: 250000, Size: 120, Description: "house"},
		{ID: 3, Address: "Main St 9", Price: 90000, Size: 60, Description: "studio"},
	}
}

func TestListKeepsServerOrder(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	c := api.NewClient(be.URL(), time.Second)

	got, err := c.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "page=1", be.Last().Query)
}

func TestListPageBeyondEndIsEmpty(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	c := api.NewClient(be.URL(), time.Second)

	got, err := c.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "page=5", be.Last().Query)
}

func TestFilterSendsOnlyNonEmptyFields(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	c := api.NewClient(be.URL(), time.Second)

	got, err := c.Filter(context.Background(), domain.Filter{Location: "Main St", Size: "60"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "address=Main+St&size=60", be.Last().Query)

	_, err = c.Filter(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "", be.Last().Query)
	assert.Equal(t, "/properties", be.Last().Path)
}

func TestGetNotFound(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	c := api.NewClient(be.URL(), time.Second)

	_, err := c.Get(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrNotFound))
	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestCreateBodyHasNoID(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	c := api.NewClient(be.URL(), time.Second)

	p, err := c.Create(context.Background(), domain.PropertyInput{Address: "Main St", Price: 100000, Size: 80, Description: "flat"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)

	last := be.Last()
	assert.Equal(t, http.MethodPost, last.Method)
	assert.JSONEq(t, `{"address":"Main St","price":100000,"size":80,"description":"flat"}`, last.Body)
}

func TestUpdateAndDelete(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	c := api.NewClient(be.URL(), time.Second)
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, 2, domain.PropertyInput{Address: "Oak Ave 7", Price: 1, Size: 2, Description: "x"}))
	assert.Equal(t, "/properties/2", be.Last().Path)
	assert.Equal(t, http.MethodPut, be.Last().Method)

	require.NoError(t, c.Delete(ctx, 2))
	assert.Len(t, be.Properties(), 2)

	err := c.Delete(ctx, 2)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestSchemaMismatchIsDecodeError(t *testing.T) {
	be := apitest.NewBackend(t)
	c := api.NewClient(be.URL(), time.Second)

	be.RespondRaw(`[{"propertyId":"one","address":"x"}]`)
	_, err := c.List(context.Background(), 1)
	var de *api.DecodeError
	require.ErrorAs(t, err, &de)

	be.RespondRaw(`not json`)
	_, err = c.Get(context.Background(), 1)
	require.ErrorAs(t, err, &de)
}

func TestTransportFailure(t *testing.T) {
	be := apitest.NewBackend(t)
	url := be.URL()
	be.Server.Close()

	c := api.NewClient(url, time.Second)
	_, err := c.List(context.Background(), 1)
	var te *api.TransportError
	require.ErrorAs(t, err, &te)
}

func TestTimeoutIsTransportFailure(t *testing.T) {
	be := apitest.NewBackend(t, seed()...)
	release := be.Block()
	t.Cleanup(release)

	c := api.NewClient(be.URL(), 50*time.Millisecond)
	_, err := c.List(context.Background(), 1)
	var te *api.TransportError
	require.ErrorAs(t, err, &te)
}

func TestRequestIDForwarded(t *testing.T) {
	var seen string
	be := apitest.NewBackend(t, seed()...)
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("X-Request-ID")
		return http.DefaultTransport.RoundTrip(r)
	})}
	c := api.NewClientWithHTTP(be.URL(), hc)

	ctx := applog.WithRequestID(context.Background(), "rid-42")
	_, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "rid-42", seen)
}

func TestClientLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	be := apitest.NewBackend(t, seed()...)
	tr := &http.Transport{}
	c := api.NewClientWithHTTP(be.URL(), &http.Client{Transport: tr})
	_, err := c.List(context.Background(), 1)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), 1)
	require.NoError(t, err)

	tr.CloseIdleConnections()
	be.Server.Close()
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
